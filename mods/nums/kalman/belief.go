package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Belief is a Gaussian distribution over the state of one series.
type Belief struct {
	Mean       *mat.VecDense
	Covariance *mat.SymDense
}

// NewBelief builds a belief from a mean and a row-major covariance.
// The covariance is symmetrized.
func NewBelief(mean []float64, covariance []float64) Belief {
	n := len(mean)
	return Belief{
		Mean:       mat.NewVecDense(n, append([]float64(nil), mean...)),
		Covariance: symmetrize(mat.NewDense(n, n, append([]float64(nil), covariance...))),
	}
}

func (b Belief) Dim() int {
	if b.Mean == nil {
		return 0
	}
	return b.Mean.Len()
}

func (b Belief) Clone() Belief {
	cov := mat.NewSymDense(b.Covariance.SymmetricDim(), nil)
	cov.CopySym(b.Covariance)
	return Belief{Mean: mat.VecDenseCopyOf(b.Mean), Covariance: cov}
}

// Failed reports whether the belief is the NaN marker of a faulted series.
func (b Belief) Failed() bool {
	return b.Mean == nil || (b.Mean.Len() > 0 && math.IsNaN(b.Mean.AtVec(0)))
}

func failedBelief(n int) Belief {
	return Belief{Mean: nanVec(n), Covariance: nanSym(n)}
}

// ReplicateBelief returns n copies of b, one per series.
func ReplicateBelief(b Belief, n int) []Belief {
	ret := make([]Belief, n)
	for i := range ret {
		ret[i] = b.Clone()
	}
	return ret
}
