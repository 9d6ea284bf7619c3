package kalman

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// SmoothResult holds the smoothed beliefs, indexed like
// FilterResult.Posteriors.
type SmoothResult struct {
	Shape   Shape
	Beliefs [][]Belief // [step][series]
	Faults  []Fault
}

func (r *SmoothResult) Len() int { return len(r.Beliefs) - 1 }

// Series returns the smoothed beliefs of series b, indexed by step.
func (r *SmoothResult) Series(b int) []Belief {
	ret := make([]Belief, len(r.Beliefs))
	for t := range r.Beliefs {
		ret[t] = r.Beliefs[t][b]
	}
	return ret
}

// smootherGain returns J = P_t·Aᵀ·Pp_{t+1}⁻¹ solved through the Cholesky
// factor of the predicted covariance.
func smootherGain(post Belief, priorNext Belief, transition mat.Matrix) (*mat.Dense, error) {
	n := post.Mean.Len()

	var chol mat.Cholesky
	if !chol.Factorize(priorNext.Covariance) {
		return nil, ErrSingularCovariance
	}
	// Jᵀ = Pp⁻¹·A·P
	AP := mat.NewDense(n, n, nil)
	AP.Mul(transition, post.Covariance)
	Jt := mat.NewDense(n, n, nil)
	if err := chol.SolveTo(Jt, AP); err != nil {
		return nil, ErrSingularCovariance
	}
	return mat.DenseCopyOf(Jt.T()), nil
}

// SmoothStep is one step of the Rauch–Tung–Striebel recursion: it revises
// the filtered belief of step t with the smoothed belief of step t+1.
// transition is the matrix that moved step t to step t+1.
func SmoothStep(post Belief, priorNext Belief, smoothedNext Belief, transition mat.Matrix) (Belief, error) {
	n := post.Mean.Len()
	J, err := smootherGain(post, priorNext, transition)
	if err != nil {
		return Belief{}, err
	}

	dx := mat.NewVecDense(n, nil)
	dx.SubVec(smoothedNext.Mean, priorNext.Mean)
	x := mat.NewVecDense(n, nil)
	x.MulVec(J, dx)
	x.AddVec(post.Mean, x)

	dP := mat.NewDense(n, n, nil)
	dP.Sub(smoothedNext.Covariance, priorNext.Covariance)
	P := mat.NewDense(n, n, nil)
	P.Product(J, dP, J.T())
	P.Add(post.Covariance, P)

	return Belief{Mean: x, Covariance: symmetrize(P)}, nil
}

// Smooth computes the beliefs of every step conditioned on all the
// observations of a filter run, by a backward RTS pass over fr.
// Series that failed in the filter are all NaN.
func (m *Model) Smooth(fr *FilterResult, opts ...Option) (*SmoothResult, error) {
	defer smoothTimer.UpdateSince(time.Now())
	o := makeOptions(opts)

	if fr == nil || len(fr.Posteriors) == 0 {
		return nil, ErrShapeMismatch("filter result steps", 1, 0)
	}
	batch, steps := fr.Batch(), fr.Len()
	if err := m.checkRun(batch, steps); err != nil {
		return nil, err
	}

	res := &SmoothResult{
		Shape:   fr.Shape,
		Beliefs: make([][]Belief, steps+1),
		Faults:  append([]Fault(nil), fr.Faults...),
	}
	for t := range res.Beliefs {
		res.Beliefs[t] = make([]Belief, batch)
	}

	if o.Log.DebugEnabled() {
		o.Log.Debugf("smooth batch=%d steps=%d workers=%d policy=%s", batch, steps, o.Workers, o.Policy)
	}
	errs := forEachSeries(batch, o.Workers, func(b int) error {
		return m.smoothSeries(b, fr, res, o)
	})
	if err := collectFaults(errs, o, &res.Faults); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Model) smoothSeries(b int, fr *FilterResult, res *SmoothResult, o *Options) error {
	steps := fr.Len()
	if fr.Failed(b) {
		for t := 0; t <= steps; t++ {
			res.Beliefs[t][b] = failedBelief(m.stateDim)
		}
		return nil
	}

	res.Beliefs[steps][b] = fr.Posteriors[steps][b].Clone()
	for t := steps - 1; t >= 0; t-- {
		smoothed, err := SmoothStep(fr.Posteriors[t][b], fr.Priors[t+1][b], res.Beliefs[t+1][b], m.At(t, b).Transition)
		if err != nil {
			if o.Policy == Isolated {
				for s := t; s >= 0; s-- {
					res.Beliefs[s][b] = failedBelief(m.stateDim)
				}
			}
			return &SingularInnovationError{Op: "smooth", Step: t, Batch: b, Err: err}
		}
		res.Beliefs[t][b] = smoothed
	}
	return nil
}

// FilterSmooth runs Filter and then Smooth with the same options.
func (m *Model) FilterSmooth(initial []Belief, obs *Observations, opts ...Option) (*FilterResult, *SmoothResult, error) {
	fr, err := m.Filter(initial, obs, opts...)
	if err != nil {
		return nil, nil, err
	}
	sr, err := m.Smooth(fr, opts...)
	if err != nil {
		return fr, nil, err
	}
	return fr, sr, nil
}
