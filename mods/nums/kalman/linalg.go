package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

func eye(n int) *mat.Dense {
	result := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		result.Set(i, i, 1.0)
	}
	return result
}

// symmetrize returns (m + mᵀ)/2 of a square matrix.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	ret := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			ret.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return ret
}

// sandwich returns a·s·aᵀ, symmetrized.
func sandwich(a mat.Matrix, s mat.Matrix) *mat.SymDense {
	r, _ := a.Dims()
	tmp := mat.NewDense(r, r, nil)
	tmp.Product(a, s, a.T())
	return symmetrize(tmp)
}

func maxAbs(m mat.Matrix) float64 {
	r, c := m.Dims()
	v := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v = math.Max(v, math.Abs(m.At(i, j)))
		}
	}
	return v
}

func hasNaN(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(m.At(i, j)) || math.IsInf(m.At(i, j), 0) {
				return true
			}
		}
	}
	return false
}

// checkCovariance returns "" when m is a finite, symmetric, positive
// semi-definite matrix within the relative tolerance.
func checkCovariance(m mat.Matrix, tol float64) string {
	r, c := m.Dims()
	if r != c {
		return "covariance is not square"
	}
	if hasNaN(m) {
		return "covariance has non-finite entries"
	}
	scale := math.Max(1, maxAbs(m))
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol*scale {
				return "covariance is not symmetric"
			}
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(symmetrize(m), false) {
		return "covariance eigen decomposition failed"
	}
	for _, v := range eig.Values(nil) {
		if v < -tol*scale {
			return "covariance is not positive semi-definite"
		}
	}
	return ""
}

// gaussianFactor returns l with l·lᵀ = s. Positive definite matrices use
// the Cholesky factor, semi-definite ones fall back to V·sqrt(Λ).
func gaussianFactor(s mat.Symmetric) *mat.Dense {
	n := s.SymmetricDim()
	var chol mat.Cholesky
	if chol.Factorize(s) {
		var l mat.TriDense
		chol.LTo(&l)
		return mat.DenseCopyOf(&l)
	}
	var eig mat.EigenSym
	if !eig.Factorize(s, true) {
		return nil
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	vals := eig.Values(nil)
	for j, v := range vals {
		v = math.Sqrt(math.Max(v, 0))
		for i := 0; i < n; i++ {
			vecs.Set(i, j, vecs.At(i, j)*v)
		}
	}
	return &vecs
}

func nanVec(n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = math.NaN()
	}
	return mat.NewVecDense(n, data)
}

func nanSym(n int) *mat.SymDense {
	data := make([]float64, n*n)
	for i := range data {
		data[i] = math.NaN()
	}
	return mat.NewSymDense(n, data)
}
