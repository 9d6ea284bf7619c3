package models_test

import (
	"math"
	"testing"
	"time"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"github.com/machbase/neo-kalman/mods/nums/kalman/models"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKalman(t *testing.T) {
	var ts time.Time
	values := []float64{1.3, 10.2, 5.0, 3.4}
	times := make([]time.Time, len(values))
	for i := range times {
		ts = ts.Add(time.Second)
		times[i] = ts
	}
	deltas, err := models.Deltas(time.Time{}, times)
	require.NoError(t, err)

	model, err := models.NewSimpleModel(values[0], deltas, models.SimpleModelConfig{
		InitialVariance:     1.0,
		ProcessVariance:     1.0,
		ObservationVariance: 2.0,
	})
	require.NoError(t, err)
	require.Equal(t, len(values), model.Steps())

	fr, err := model.Filter(nil, model.Observations(values))
	require.NoError(t, err)
	require.Equal(t, len(values), fr.Len())

	// every posterior lies between its prior mean and the observation
	for i, v := range values {
		prior := model.Value(fr.Priors[i+1][0].Mean)
		post := model.Value(fr.Posteriors[i+1][0].Mean)
		require.LessOrEqual(t, post, math.Max(prior, v))
		require.GreaterOrEqual(t, post, math.Min(prior, v))
	}
	require.False(t, math.IsNaN(fr.LogLikelihood[0]))
}

func TestDeltasPast(t *testing.T) {
	now := time.Now()
	_, err := models.Deltas(now, []time.Time{now.Add(time.Second), now})
	require.Error(t, err)
}

func TestBrownianNonUniformSteps(t *testing.T) {
	deltas := []time.Duration{time.Second, 3 * time.Second}
	model, err := models.NewBrownianModel(mat.NewVecDense(2, []float64{0, 0}), deltas, models.BrownianModelConfig{
		InitialVariance:     1,
		ProcessVariance:     0.5,
		ObservationVariance: 0.1,
	})
	require.NoError(t, err)

	require.InDelta(t, 0.5, model.At(0, 0).TransitionCov.At(0, 0), 1e-12)
	require.InDelta(t, 1.5, model.At(1, 0).TransitionCov.At(1, 1), 1e-12)
	require.InDelta(t, 0.0, model.At(1, 0).TransitionCov.At(0, 1), 1e-12)
}

func TestConstantVelocity(t *testing.T) {
	model, err := models.NewConstantVelocityModel(mat.NewVecDense(1, []float64{0}), nil, models.ConstantVelocityModelConfig{
		InitialVariance:     10,
		ProcessVariance:     1e-6,
		ObservationVariance: 1e-4,
	})
	require.NoError(t, err)
	require.Zero(t, model.Steps())

	// a particle moving at 2 units per second
	obs := kalman.NewObservations(kalman.Shape{}, 1, 20)
	for i := 0; i < 20; i++ {
		obs.Set(i, 0, []float64{2 * float64(i+1)})
	}
	fr, err := model.Filter(nil, obs)
	require.NoError(t, err)

	last := fr.Posteriors[20][0].Mean
	require.InDelta(t, 40, model.Position(last).AtVec(0), 1e-2)
	require.InDelta(t, 2, model.Velocity(last).AtVec(0), 1e-2)
	require.Panics(t, func() { model.Position(mat.NewVecDense(3, nil)) })
}
