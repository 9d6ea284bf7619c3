// Package kalman implements the linear-Gaussian state-space engine:
// the Kalman filter, the Rauch–Tung–Striebel smoother and samplers, over a
// batch of independent series sharing a common model structure.
//
// Series never interact, so every operation is applied to each series on
// its own and the batch axis can be split across workers freely.
// Along the time axis the recursions are strictly sequential.
package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var log2Pi = math.Log(2 * math.Pi)

// Predict advances the belief one step through the transition model.
//
//	mean' = A·mean + c
//	cov'  = A·cov·Aᵀ + Q
func Predict(belief Belief, p Params) Belief {
	n := belief.Mean.Len()

	mean := mat.NewVecDense(n, nil)
	mean.MulVec(p.Transition, belief.Mean)
	if p.Control != nil {
		mean.AddVec(mean, p.Control)
	}

	cov := mat.NewDense(n, n, nil)
	cov.Product(p.Transition, belief.Covariance, p.Transition.T())
	cov.Add(cov, p.TransitionCov)

	return Belief{Mean: mean, Covariance: symmetrize(cov)}
}

// IsMissing reports whether v is the missing-observation marker NaN.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Update incorporates the observation y into the prior and returns the
// posterior with the log-density of the innovation.
//
// NaN components of y are missing. When every component is missing the
// prior is returned unchanged with a zero log-likelihood, otherwise only the
// observed components take part in the update.
// A non positive definite innovation covariance returns ErrSingularCovariance.
func Update(prior Belief, y []float64, p Params) (Belief, float64, error) {
	if k, _ := p.Observation.Dims(); len(y) != k {
		return Belief{}, 0, ErrShapeMismatch("observation dim", k, len(y))
	}
	observed := make([]int, 0, len(y))
	for i, v := range y {
		if !IsMissing(v) {
			observed = append(observed, i)
		}
	}
	if len(observed) == 0 {
		return prior.Clone(), 0, nil
	}

	H, R, z, d := p.Observation, p.ObservationCov, mat.NewVecDense(len(y), append([]float64(nil), y...)), p.ObservationOffset
	if len(observed) < len(y) {
		H, R, z, d = selectObserved(observed, p, y)
	}
	return update(prior, z, H, R, d)
}

func update(prior Belief, z *mat.VecDense, H mat.Matrix, R mat.Symmetric, d mat.Vector) (Belief, float64, error) {
	n := prior.Mean.Len()
	k := z.Len()
	P := prior.Covariance

	// innovation e = z - (H·mean + d)
	e := mat.NewVecDense(k, nil)
	e.MulVec(H, prior.Mean)
	if d != nil {
		e.AddVec(e, d)
	}
	e.SubVec(z, e)

	// S = H·P·Hᵀ + R
	HP := mat.NewDense(k, n, nil)
	HP.Mul(H, P)
	S := mat.NewDense(k, k, nil)
	S.Mul(HP, H.T())
	S.Add(S, R)

	var chol mat.Cholesky
	if !chol.Factorize(symmetrize(S)) {
		return Belief{}, 0, ErrSingularCovariance
	}

	// Kᵀ = S⁻¹·H·P, since P and S are symmetric
	Kt := mat.NewDense(k, n, nil)
	if err := chol.SolveTo(Kt, HP); err != nil {
		return Belief{}, 0, ErrSingularCovariance
	}
	K := Kt.T()

	mean := mat.NewVecDense(n, nil)
	mean.MulVec(K, e)
	mean.AddVec(prior.Mean, mean)

	// Joseph form (I-KH)·P·(I-KH)ᵀ + K·R·Kᵀ
	IKH := mat.NewDense(n, n, nil)
	IKH.Mul(K, H)
	IKH.Sub(eye(n), IKH)
	cov := mat.NewDense(n, n, nil)
	cov.Product(IKH, P, IKH.T())
	KRK := mat.NewDense(n, n, nil)
	KRK.Product(K, R, Kt)
	cov.Add(cov, KRK)

	// log N(e; 0, S)
	w := mat.NewVecDense(k, nil)
	if err := chol.SolveVecTo(w, e); err != nil {
		return Belief{}, 0, ErrSingularCovariance
	}
	ll := -0.5 * (float64(k)*log2Pi + chol.LogDet() + mat.Dot(e, w))

	return Belief{Mean: mean, Covariance: symmetrize(cov)}, ll, nil
}

// selectObserved reduces the observation model to the observed rows.
func selectObserved(observed []int, p Params, y []float64) (mat.Matrix, mat.Symmetric, *mat.VecDense, mat.Vector) {
	_, n := p.Observation.Dims()
	k := len(observed)

	H := mat.NewDense(k, n, nil)
	R := mat.NewSymDense(k, nil)
	z := mat.NewVecDense(k, nil)
	var d *mat.VecDense
	if p.ObservationOffset != nil {
		d = mat.NewVecDense(k, nil)
	}
	for i, oi := range observed {
		for j := 0; j < n; j++ {
			H.Set(i, j, p.Observation.At(oi, j))
		}
		for j := i; j < k; j++ {
			R.SetSym(i, j, p.ObservationCov.At(oi, observed[j]))
		}
		z.SetVec(i, y[oi])
		if d != nil {
			d.SetVec(i, p.ObservationOffset.AtVec(oi))
		}
	}
	if d == nil {
		return H, R, z, nil
	}
	return H, R, z, d
}
