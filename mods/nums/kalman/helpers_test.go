package kalman_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func dense(r, c int, v ...float64) mat.Matrix {
	return mat.NewDense(r, c, v)
}

func vec(v ...float64) mat.Vector {
	return mat.NewVecDense(len(v), v)
}

// scalarModel is the random walk x_t = x_{t-1} + w, y_t = x_t + v.
func scalarModel(t *testing.T, q, r float64, opts ...kalman.ModelOption) *kalman.Model {
	t.Helper()
	m, err := kalman.NewModel(
		kalman.Const(dense(1, 1, 1)),
		kalman.Const(dense(1, 1, q)),
		kalman.Const(dense(1, 1, 1)),
		kalman.Const(dense(1, 1, r)),
		opts...,
	)
	require.NoError(t, err)
	return m
}

// trackingModel is a 2D constant-velocity model observing position only.
func trackingModel(t *testing.T, opts ...kalman.ModelOption) *kalman.Model {
	t.Helper()
	m, err := kalman.NewModel(
		kalman.Const(dense(2, 2, 1, 1, 0, 1)),
		kalman.Const(dense(2, 2, 0.01, 0.005, 0.005, 0.01)),
		kalman.Const(dense(1, 2, 1, 0)),
		kalman.Const(dense(1, 1, 0.25)),
		opts...,
	)
	require.NoError(t, err)
	return m
}

func randomPSD(rnd *rand.Rand, n int) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, rnd.NormFloat64())
		}
	}
	ret := mat.NewDense(n, n, nil)
	ret.Mul(a, a.T())
	for i := 0; i < n; i++ {
		ret.Set(i, i, ret.At(i, i)+0.1)
	}
	return ret
}

func randomMatrix(rnd *rand.Rand, r, c int) *mat.Dense {
	ret := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			ret.Set(i, j, rnd.NormFloat64())
		}
	}
	return ret
}

func randomObservations(rnd *rand.Rand, batch, dim, steps int) *kalman.Observations {
	obs := kalman.NewObservations(kalman.Shape{batch}, dim, steps)
	for t := 0; t < steps; t++ {
		for b := 0; b < batch; b++ {
			y := make([]float64, dim)
			for i := range y {
				y[i] = rnd.NormFloat64() + float64(t)
			}
			obs.Set(t, b, y)
		}
	}
	return obs
}

// requireSymmetricPSD checks symmetry of the stored values and that no
// eigenvalue is meaningfully negative.
func requireSymmetricPSD(t *testing.T, m mat.Matrix) {
	t.Helper()
	n, c := m.Dims()
	require.Equal(t, n, c)
	scale := 1.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			scale = math.Max(scale, math.Abs(m.At(i, j)))
			require.InDelta(t, m.At(i, j), m.At(j, i), 1e-12)
		}
	}
	var eig mat.EigenSym
	require.True(t, eig.Factorize(mat.NewSymDense(n, mat.DenseCopyOf(m).RawMatrix().Data), false))
	for _, v := range eig.Values(nil) {
		require.GreaterOrEqual(t, v, -1e-9*scale)
	}
}

func requireSameBelief(t *testing.T, expected, actual kalman.Belief) {
	t.Helper()
	require.True(t, mat.Equal(expected.Mean, actual.Mean), "mean %v != %v", mat.Formatted(expected.Mean.T()), mat.Formatted(actual.Mean.T()))
	require.True(t, mat.Equal(expected.Covariance, actual.Covariance), "covariance\n%v\n!=\n%v", mat.Formatted(expected.Covariance), mat.Formatted(actual.Covariance))
}
