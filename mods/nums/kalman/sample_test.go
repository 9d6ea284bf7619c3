package kalman_test

import (
	"math"
	"testing"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"github.com/machbase/neo-kalman/mods/nums/kalman/rng"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

func TestSampleReproducible(t *testing.T) {
	m := trackingModel(t)
	prior := []kalman.Belief{kalman.NewBelief([]float64{0, 1}, []float64{1, 0, 0, 1})}

	a, err := m.Sample(rng.NewKey(42), 20, kalman.Shape{4}, prior)
	require.NoError(t, err)
	b, err := m.Sample(rng.NewKey(42), 20, kalman.Shape{4}, prior, kalman.WithWorkers(3))
	require.NoError(t, err)
	c, err := m.Sample(rng.NewKey(43), 20, kalman.Shape{4}, prior)
	require.NoError(t, err)

	require.Equal(t, 20, a.Len())
	require.Len(t, a.States, 21)
	require.Equal(t, 20, a.Observations.Len())
	for s := 0; s <= 20; s++ {
		require.True(t, mat.Equal(a.States[s], b.States[s]))
		require.False(t, mat.Equal(a.States[s], c.States[s]))
	}
	for s := 0; s < 20; s++ {
		require.True(t, mat.Equal(a.Observations.Steps[s], b.Observations.Steps[s]))
	}
	// series draw from their own streams
	require.NotEqual(t, a.State(5, 0), a.State(5, 1))
}

func TestSampleSeriesPrefix(t *testing.T) {
	m := trackingModel(t)
	prior := []kalman.Belief{kalman.NewBelief([]float64{0, 1}, []float64{1, 0, 0, 1})}
	small, err := m.Sample(rng.NewKey(5), 6, kalman.Shape{2}, prior)
	require.NoError(t, err)
	large, err := m.Sample(rng.NewKey(5), 6, kalman.Shape{8}, prior)
	require.NoError(t, err)
	for s := 0; s <= 6; s++ {
		require.Equal(t, small.State(s, 1), large.State(s, 1))
	}
}

func TestSampleDeterministicDynamics(t *testing.T) {
	m, err := kalman.NewModel(
		kalman.Const(dense(2, 2, 1, 1, 0, 1)),
		kalman.Const(dense(2, 2, 0, 0, 0, 0)),
		kalman.Const(dense(1, 2, 1, 0)),
		kalman.Const(dense(1, 1, 0)),
		kalman.WithInitial(kalman.Const(vec(0, 2)), kalman.Const(dense(2, 2, 0, 0, 0, 0))),
	)
	require.NoError(t, err)
	tr, err := m.Sample(rng.NewKey(1), 5, kalman.Shape{}, nil)
	require.NoError(t, err)
	for s := 0; s <= 5; s++ {
		require.InDelta(t, float64(2*s), tr.State(s, 0)[0], 1e-12)
		require.InDelta(t, 2.0, tr.State(s, 0)[1], 1e-12)
	}
	for s := 0; s < 5; s++ {
		require.InDelta(t, float64(2*(s+1)), tr.Observations.At(s, 0)[0], 1e-12)
	}
}

// TestSampleLikelihood averages the filter log-likelihood of sampled
// observations, which estimates the negative entropy of the joint.
func TestSampleLikelihood(t *testing.T) {
	const p0, q, r, T, N = 1.0, 0.2, 0.3, 5, 4000
	m := scalarModel(t, q, r)
	prior := []kalman.Belief{kalman.NewBelief([]float64{0}, []float64{p0})}

	tr, err := m.Sample(rng.NewKey(2024), T, kalman.Shape{N}, prior, kalman.WithWorkers(4))
	require.NoError(t, err)
	fr, err := m.Filter(prior, tr.Observations, kalman.WithWorkers(4))
	require.NoError(t, err)

	mean := 0.0
	for _, ll := range fr.LogLikelihood {
		require.False(t, math.IsNaN(ll))
		require.False(t, math.IsInf(ll, 0))
		mean += ll / N
	}

	cov := mat.NewSymDense(T, nil)
	for i := 0; i < T; i++ {
		for j := i; j < T; j++ {
			v := p0 + float64(min(i, j)+1)*q
			if i == j {
				v += r
			}
			cov.SetSym(i, j, v)
		}
	}
	joint, ok := distmv.NewNormal(make([]float64, T), cov, nil)
	require.True(t, ok)
	require.InDelta(t, -joint.Entropy(), mean, 0.1)
}

func TestSampleErrors(t *testing.T) {
	m := scalarModel(t, 1, 1)
	_, err := m.Sample(rng.NewKey(1), 3, kalman.Shape{2}, nil)
	require.ErrorIs(t, err, kalman.ErrNoInitialBelief)
	require.False(t, kalman.IsConfigurationError(err))
	_, err = m.Sample(rng.NewKey(1), -1, kalman.Shape{2}, []kalman.Belief{kalman.NewBelief([]float64{0}, []float64{1})})
	require.True(t, kalman.IsShapeMismatchError(err))

	tr, err := m.Sample(rng.NewKey(1), 0, kalman.Shape{2}, []kalman.Belief{kalman.NewBelief([]float64{0}, []float64{1})})
	require.NoError(t, err)
	require.Zero(t, tr.Len())
}

func TestSamplePosterior(t *testing.T) {
	m := trackingModel(t)
	prior := []kalman.Belief{kalman.NewBelief([]float64{0, 1}, []float64{1, 0, 0, 1})}
	truth, err := m.Sample(rng.NewKey(8), 10, kalman.Shape{3}, prior)
	require.NoError(t, err)
	fr, err := m.Filter(prior, truth.Observations)
	require.NoError(t, err)

	a, err := m.SamplePosterior(rng.NewKey(9), fr)
	require.NoError(t, err)
	b, err := m.SamplePosterior(rng.NewKey(9), fr, kalman.WithWorkers(2))
	require.NoError(t, err)
	require.Equal(t, 10, a.Len())
	for s := 0; s <= 10; s++ {
		require.True(t, mat.Equal(a.States[s], b.States[s]))
		for i := 0; i < 3; i++ {
			for _, v := range a.State(s, i) {
				require.False(t, math.IsNaN(v))
			}
		}
	}
}

// With almost exact observations of the whole state, posterior draws
// collapse onto the observed path.
func TestSamplePosteriorConcentrates(t *testing.T) {
	m, err := kalman.NewModel(
		kalman.Const(dense(1, 1, 1)),
		kalman.Const(dense(1, 1, 1)),
		kalman.Const(dense(1, 1, 1)),
		kalman.Const(dense(1, 1, 1e-10)),
	)
	require.NoError(t, err)
	ys := []float64{1, 3, 2, 5}
	obs := kalman.NewObservations(kalman.Shape{}, 1, len(ys))
	for i, y := range ys {
		obs.Set(i, 0, []float64{y})
	}
	fr, err := m.Filter([]kalman.Belief{kalman.NewBelief([]float64{0}, []float64{1})}, obs)
	require.NoError(t, err)
	tr, err := m.SamplePosterior(rng.NewKey(3), fr)
	require.NoError(t, err)
	for i, y := range ys {
		require.InDelta(t, y, tr.State(i+1, 0)[0], 1e-3)
	}
}

func TestSamplePosteriorIsolated(t *testing.T) {
	m, initial := faultyModel(t)
	obs := kalman.NewObservations(kalman.Shape{3}, 1, 2)
	for b := 0; b < 3; b++ {
		obs.Set(0, b, []float64{1})
	}
	fr, err := m.Filter(initial, obs, kalman.WithPolicy(kalman.Isolated))
	require.NoError(t, err)
	tr, err := m.SamplePosterior(rng.NewKey(3), fr)
	require.NoError(t, err)
	require.True(t, math.IsNaN(tr.State(1, 1)[0]))
	require.True(t, math.IsNaN(tr.Observations.At(0, 1)[0]))
	require.False(t, math.IsNaN(tr.State(1, 0)[0]))
}

func TestSampleBeliefs(t *testing.T) {
	exact := kalman.NewBelief([]float64{1, 2}, []float64{0, 0, 0, 0})
	wide := kalman.NewBelief([]float64{0, 0}, []float64{1, 0.5, 0.5, 1})
	beliefs := [][]kalman.Belief{{exact, wide}, {wide, exact}}

	out, err := kalman.SampleBeliefs(rng.NewKey(11), beliefs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, []float64{1, 2}, out[0].RawRowView(0))
	require.Equal(t, []float64{1, 2}, out[1].RawRowView(1))

	again, err := kalman.SampleBeliefs(rng.NewKey(11), beliefs)
	require.NoError(t, err)
	require.True(t, mat.Equal(out[1], again[1]))

	_, err = kalman.SampleBeliefs(rng.NewKey(11), [][]kalman.Belief{{exact, wide}, {wide}})
	require.True(t, kalman.IsShapeMismatchError(err))
}
