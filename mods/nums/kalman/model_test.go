package kalman_test

import (
	"errors"
	"math"
	"testing"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewModelConfigurationErrors(t *testing.T) {
	A := kalman.Const(dense(2, 2, 1, 1, 0, 1))
	Q := kalman.Const(dense(2, 2, 0.1, 0, 0, 0.1))
	H := kalman.Const(dense(1, 2, 1, 0))
	R := kalman.Const(dense(1, 1, 0.5))

	tests := []struct {
		name  string
		field string
		build func() (*kalman.Model, error)
	}{
		{"missing transition", "transition", func() (*kalman.Model, error) {
			return kalman.NewModel(kalman.Term[mat.Matrix]{}, Q, H, R)
		}},
		{"asymmetric Q", "transition_cov", func() (*kalman.Model, error) {
			return kalman.NewModel(A, kalman.Const(dense(2, 2, 0.1, 0.05, 0, 0.1)), H, R)
		}},
		{"indefinite R", "observation_cov", func() (*kalman.Model, error) {
			return kalman.NewModel(A, Q, H, kalman.Const(dense(1, 1, -0.5)))
		}},
		{"NaN in R", "observation_cov", func() (*kalman.Model, error) {
			return kalman.NewModel(A, Q, H, kalman.Const(dense(1, 1, math.NaN())))
		}},
		{"H columns", "observation", func() (*kalman.Model, error) {
			return kalman.NewModel(A, Q, kalman.Const(dense(1, 3, 1, 0, 0)), R)
		}},
		{"A not square", "transition", func() (*kalman.Model, error) {
			return kalman.NewModel(kalman.TimeVarying([]mat.Matrix{dense(2, 2, 1, 0, 0, 1), dense(2, 1, 1, 0)}), Q, H, R)
		}},
		{"R size", "observation_cov", func() (*kalman.Model, error) {
			return kalman.NewModel(A, Q, H, kalman.Const(dense(2, 2, 1, 0, 0, 1)))
		}},
		{"steps disagree", "observation", func() (*kalman.Model, error) {
			return kalman.NewModel(
				kalman.TimeVarying([]mat.Matrix{dense(2, 2, 1, 0, 0, 1), dense(2, 2, 1, 0, 0, 1)}), Q,
				kalman.TimeVarying([]mat.Matrix{dense(1, 2, 1, 0), dense(1, 2, 1, 0), dense(1, 2, 1, 0)}), R)
		}},
		{"batch disagree", "observation_cov", func() (*kalman.Model, error) {
			return kalman.NewModel(A, kalman.Batched([]mat.Matrix{dense(2, 2, 1, 0, 0, 1), dense(2, 2, 1, 0, 0, 1)}), H,
				kalman.Batched([]mat.Matrix{dense(1, 1, 1), dense(1, 1, 1), dense(1, 1, 1)}))
		}},
		{"control without input", "control", func() (*kalman.Model, error) {
			return kalman.NewModel(A, Q, H, R, kalman.WithControl(kalman.Const(dense(2, 1, 1, 0)), kalman.Term[mat.Vector]{}))
		}},
		{"offset length", "observation_offset", func() (*kalman.Model, error) {
			return kalman.NewModel(A, Q, H, R, kalman.WithObservationOffset(kalman.Const(vec(1, 2))))
		}},
		{"time varying initial", "initial", func() (*kalman.Model, error) {
			return kalman.NewModel(A, Q, H, R, kalman.WithInitial(
				kalman.TimeVarying([]mat.Vector{vec(0, 0)}), kalman.TimeVarying([]mat.Matrix{dense(2, 2, 1, 0, 0, 1)})))
		}},
		{"noise transform shape", "noise_transform", func() (*kalman.Model, error) {
			return kalman.NewModel(A, kalman.Const(dense(1, 1, 1)), H, R, kalman.WithNoiseTransform(kalman.Const(dense(1, 2, 1, 0))))
		}},
		{"tolerance", "tolerance", func() (*kalman.Model, error) {
			return kalman.NewModel(A, Q, H, R, kalman.WithTolerance(0))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.build()
			require.Nil(t, m)
			require.Error(t, err)
			require.True(t, kalman.IsConfigurationError(err), err.Error())
			var cerr *kalman.ConfigurationError
			require.True(t, errors.As(err, &cerr))
			require.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestConfigurationErrorLocation(t *testing.T) {
	_, err := kalman.NewModel(
		kalman.Const(dense(1, 1, 1)),
		kalman.TimeBatched([][]mat.Matrix{
			{dense(1, 1, 1), dense(1, 1, 1)},
			{dense(1, 1, 1), dense(1, 1, -1)},
		}),
		kalman.Const(dense(1, 1, 1)),
		kalman.Const(dense(1, 1, 1)),
	)
	var cerr *kalman.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, 1, cerr.Step)
	require.Equal(t, 1, cerr.Batch)
	require.Contains(t, cerr.Error(), "transition_cov[step=1][batch=1]")
}

func TestSymmetryTolerance(t *testing.T) {
	asym := dense(2, 2, 1, 1e-12, 0, 1)
	_, err := kalman.NewModel(kalman.Const(dense(2, 2, 1, 0, 0, 1)), kalman.Const(asym), kalman.Const(dense(1, 2, 1, 0)), kalman.Const(dense(1, 1, 1)))
	require.NoError(t, err)

	_, err = kalman.NewModel(kalman.Const(dense(2, 2, 1, 0, 0, 1)), kalman.Const(asym), kalman.Const(dense(1, 2, 1, 0)), kalman.Const(dense(1, 1, 1)),
		kalman.WithTolerance(1e-14))
	require.True(t, kalman.IsConfigurationError(err))
}

func TestModelAt(t *testing.T) {
	m, err := kalman.NewModel(
		kalman.TimeVarying([]mat.Matrix{dense(2, 2, 1, 0, 0, 1), dense(2, 2, 2, 0, 0, 2), dense(2, 2, 3, 0, 0, 3)}),
		kalman.Const(dense(1, 1, 4)),
		kalman.Const(dense(1, 2, 1, 0)),
		kalman.Batched([]mat.Matrix{dense(1, 1, 1), dense(1, 1, 2)}),
		kalman.WithNoiseTransform(kalman.Const(dense(2, 1, 1, 0.5))),
		kalman.WithTransitionOffset(kalman.Const(vec(1, -1))),
		kalman.WithControl(kalman.Const(dense(2, 1, 1, 1)), kalman.TimeVarying([]mat.Vector{vec(1), vec(2), vec(3)})),
	)
	require.NoError(t, err)
	require.Equal(t, 3, m.Steps())
	require.Equal(t, 2, m.Batch())
	n, k := m.Dims()
	require.Equal(t, 2, n)
	require.Equal(t, 1, k)

	p := m.At(2, 1)
	require.Equal(t, 3.0, p.Transition.At(0, 0))
	require.Equal(t, 2.0, p.ObservationCov.At(0, 0))
	// G·Q·Gᵀ
	require.InDelta(t, 4.0, p.TransitionCov.At(0, 0), 1e-12)
	require.InDelta(t, 2.0, p.TransitionCov.At(0, 1), 1e-12)
	require.InDelta(t, 1.0, p.TransitionCov.At(1, 1), 1e-12)
	// B·u + b
	require.Equal(t, 4.0, p.Control.AtVec(0))
	require.Equal(t, 2.0, p.Control.AtVec(1))
	require.Nil(t, p.ObservationOffset)

	require.False(t, m.HasInitial())
	_, ok := m.Initial(0)
	require.False(t, ok)
}

func TestModelShapeChecks(t *testing.T) {
	m, err := kalman.NewModel(
		kalman.TimeVarying([]mat.Matrix{dense(1, 1, 1), dense(1, 1, 1)}),
		kalman.Batched([]mat.Matrix{dense(1, 1, 1), dense(1, 1, 1)}),
		kalman.Const(dense(1, 1, 1)),
		kalman.Const(dense(1, 1, 1)),
	)
	require.NoError(t, err)
	prior := []kalman.Belief{kalman.NewBelief([]float64{0}, []float64{1})}

	// batch of 3 against a 2 series model
	_, err = m.Filter(prior, kalman.NewObservations(kalman.Shape{3}, 1, 2))
	require.True(t, kalman.IsShapeMismatchError(err))

	// more steps than the model has
	_, err = m.Filter(prior, kalman.NewObservations(kalman.Shape{2}, 1, 3))
	require.True(t, kalman.IsShapeMismatchError(err))

	// observation dim
	_, err = m.Filter(prior, kalman.NewObservations(kalman.Shape{2}, 2, 2))
	require.True(t, kalman.IsShapeMismatchError(err))

	// initial belief count
	_, err = m.Filter(kalman.ReplicateBelief(prior[0], 3), kalman.NewObservations(kalman.Shape{2}, 1, 2))
	require.True(t, kalman.IsShapeMismatchError(err))

	// initial belief dim
	_, err = m.Filter([]kalman.Belief{kalman.NewBelief([]float64{0, 0}, []float64{1, 0, 0, 1})}, kalman.NewObservations(kalman.Shape{2}, 1, 2))
	require.True(t, kalman.IsShapeMismatchError(err))

	// no prior anywhere
	_, err = m.Filter(nil, kalman.NewObservations(kalman.Shape{2}, 1, 2))
	require.ErrorIs(t, err, kalman.ErrNoInitialBelief)
	require.False(t, kalman.IsConfigurationError(err))

	fr, err := m.Filter(prior, kalman.NewObservations(kalman.Shape{2}, 1, 2))
	require.NoError(t, err)
	require.Equal(t, 2, fr.Len())
}

func TestModelInitial(t *testing.T) {
	m := scalarModel(t, 0.1, 0.1, kalman.WithInitial(
		kalman.Batched([]mat.Vector{vec(1), vec(-1)}),
		kalman.Const(dense(1, 1, 2)),
	))
	require.True(t, m.HasInitial())
	require.Equal(t, 2, m.Batch())

	obs := kalman.NewObservations(kalman.Shape{2}, 1, 1)
	fr, err := m.Filter(nil, obs)
	require.NoError(t, err)
	require.Equal(t, 1.0, fr.Posteriors[0][0].Mean.AtVec(0))
	require.Equal(t, -1.0, fr.Posteriors[0][1].Mean.AtVec(0))
	require.Equal(t, 2.0, fr.Posteriors[0][1].Covariance.At(0, 0))
}

func TestShapeIndex(t *testing.T) {
	s := kalman.Shape{2, 3}
	require.Equal(t, 6, s.Size())
	require.Equal(t, 0, s.Index(0, 0))
	require.Equal(t, 4, s.Index(1, 1))
	require.Equal(t, 5, s.Index(1, 2))
	require.Panics(t, func() { s.Index(2, 0) })
	require.Panics(t, func() { s.Index(1) })
	require.Equal(t, 1, kalman.Shape{}.Size())
}

func TestTermLayouts(t *testing.T) {
	tb := kalman.TimeBatched([][]int{{1, 2}, {3, 4}, {5, 6}})
	require.Equal(t, 3, tb.Steps())
	require.Equal(t, 2, tb.Batch())
	require.Equal(t, 4, tb.At(1, 1))
	require.Equal(t, 5, tb.At(2, 0))

	c := kalman.Const(7)
	require.Equal(t, 7, c.At(100, 100))
	require.Zero(t, c.Steps())

	b := kalman.Batched([]int{1, 2, 3})
	require.Equal(t, 3, b.At(99, 2))

	tv := kalman.TimeVarying([]int{1, 2, 3})
	require.Equal(t, 2, tv.At(1, 42))

	require.False(t, kalman.Term[int]{}.IsSet())
	ragged := kalman.TimeBatched([][]mat.Matrix{{dense(1, 1, 1), dense(1, 1, 1)}, {dense(1, 1, 1)}})
	require.True(t, ragged.IsSet())
	_, err := kalman.NewModel(
		kalman.Const(dense(1, 1, 1)),
		ragged,
		kalman.Const(dense(1, 1, 1)),
		kalman.Const(dense(1, 1, 1)),
	)
	require.True(t, kalman.IsConfigurationError(err))
	require.Contains(t, err.Error(), "transition_cov")
	require.Contains(t, err.Error(), "step 1 has 1 series, expected 2")
}
