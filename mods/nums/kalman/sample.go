package kalman

import (
	"fmt"
	"math"
	"time"

	"github.com/machbase/neo-kalman/mods/nums/kalman/rng"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Trajectory is a set of sampled state and observation paths.
// States[t] is batch×stateDim for t = 0..horizon; the observation of step s
// is emitted from States[s+1], the same convention Filter uses.
type Trajectory struct {
	Shape        Shape
	States       []*mat.Dense
	Observations *Observations
}

// Len is the number of steps after the initial state.
func (tr *Trajectory) Len() int { return len(tr.States) - 1 }

// State returns a view of the state of series b at step t.
func (tr *Trajectory) State(t, b int) []float64 {
	return tr.States[t].RawRowView(b)
}

func newTrajectory(shape Shape, horizon, stateDim, obsDim int) *Trajectory {
	batch := shape.Size()
	ret := &Trajectory{
		Shape:        shape,
		States:       make([]*mat.Dense, horizon+1),
		Observations: NewObservations(shape, obsDim, horizon),
	}
	for t := range ret.States {
		ret.States[t] = mat.NewDense(batch, stateDim, nil)
	}
	return ret
}

// sampler draws from Gaussians with a series-private standard normal stream.
type sampler struct {
	normal distuv.Normal
}

func newSampler(key rng.Key, b int) *sampler {
	return &sampler{normal: distuv.Normal{Mu: 0, Sigma: 1, Src: key.Fold(uint64(b)).Source()}}
}

// draw stores mean + L·z into dst, with L·Lᵀ = cov and z standard normal.
func (s *sampler) draw(dst []float64, mean mat.Vector, cov mat.Symmetric) error {
	n := cov.SymmetricDim()
	L := gaussianFactor(cov)
	if L == nil {
		return ErrSingularCovariance
	}
	z := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		z.SetVec(i, s.normal.Rand())
	}
	out := mat.NewVecDense(n, dst)
	out.MulVec(L, z)
	if mean != nil {
		out.AddVec(out, mean)
	}
	return nil
}

// Sample simulates the model forward for horizon steps for every series of
// shape. x_0 is drawn from initial (one shared belief or one per series) or
// from the model prior when initial is empty.
//
// Series b consumes randomness only from key.Fold(b), so the same key
// reproduces the same trajectories regardless of the worker count.
func (m *Model) Sample(key rng.Key, horizon int, shape Shape, initial []Belief, opts ...Option) (*Trajectory, error) {
	defer sampleTimer.UpdateSince(time.Now())
	o := makeOptions(opts)

	if horizon < 0 {
		return nil, ErrShapeMismatch("horizon", 0, horizon)
	}
	batch := shape.Size()
	if err := m.checkRun(batch, horizon); err != nil {
		return nil, err
	}
	inits, err := m.initialBeliefs(initial, batch)
	if err != nil {
		return nil, err
	}

	tr := newTrajectory(shape, horizon, m.stateDim, m.obsDim)
	if o.Log.DebugEnabled() {
		o.Log.Debugf("sample batch=%d horizon=%d key=%s", batch, horizon, key)
	}
	errs := forEachSeries(batch, o.Workers, func(b int) error {
		s := newSampler(key, b)
		if err := s.draw(tr.State(0, b), inits[b].Mean, inits[b].Covariance); err != nil {
			return fmt.Errorf("sample initial state of batch %d, %w", b, err)
		}
		for t := 0; t < horizon; t++ {
			p := m.At(t, b)
			prev := mat.NewVecDense(m.stateDim, tr.State(t, b))

			mean := mat.NewVecDense(m.stateDim, nil)
			mean.MulVec(p.Transition, prev)
			if p.Control != nil {
				mean.AddVec(mean, p.Control)
			}
			if err := s.draw(tr.State(t+1, b), mean, p.TransitionCov); err != nil {
				return fmt.Errorf("sample state of batch %d at step %d, %w", b, t, err)
			}
			if err := m.emit(s, tr, t, b, p); err != nil {
				return err
			}
		}
		return nil
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// emit draws the observation of step t from the state at t+1.
func (m *Model) emit(s *sampler, tr *Trajectory, t, b int, p Params) error {
	x := mat.NewVecDense(m.stateDim, tr.State(t+1, b))
	mean := mat.NewVecDense(m.obsDim, nil)
	mean.MulVec(p.Observation, x)
	if p.ObservationOffset != nil {
		mean.AddVec(mean, p.ObservationOffset)
	}
	if err := s.draw(tr.Observations.At(t, b), mean, p.ObservationCov); err != nil {
		return fmt.Errorf("sample observation of batch %d at step %d, %w", b, t, err)
	}
	return nil
}

// SamplePosterior draws joint state paths from the posterior of a filter
// run by forward-filtering backward-sampling, and emits fresh observations
// from the drawn states. Failed series are NaN.
func (m *Model) SamplePosterior(key rng.Key, fr *FilterResult, opts ...Option) (*Trajectory, error) {
	defer sampleTimer.UpdateSince(time.Now())
	o := makeOptions(opts)

	if fr == nil || len(fr.Posteriors) == 0 {
		return nil, ErrShapeMismatch("filter result steps", 1, 0)
	}
	batch, steps := fr.Batch(), fr.Len()
	if err := m.checkRun(batch, steps); err != nil {
		return nil, err
	}
	shape := fr.Shape
	if shape.Size() != batch {
		shape = Shape{batch}
	}

	tr := newTrajectory(shape, steps, m.stateDim, m.obsDim)
	errs := forEachSeries(batch, o.Workers, func(b int) error {
		if fr.Failed(b) {
			for t := 0; t <= steps; t++ {
				fillNaN(tr.State(t, b))
			}
			for t := 0; t < steps; t++ {
				fillNaN(tr.Observations.At(t, b))
			}
			return nil
		}
		s := newSampler(key, b)
		last := fr.Posteriors[steps][b]
		if err := s.draw(tr.State(steps, b), last.Mean, last.Covariance); err != nil {
			return &SingularInnovationError{Op: "sample", Step: steps, Batch: b, Err: err}
		}
		for t := steps - 1; t >= 0; t-- {
			post, priorNext := fr.Posteriors[t][b], fr.Priors[t+1][b]
			J, err := smootherGain(post, priorNext, m.At(t, b).Transition)
			if err != nil {
				return &SingularInnovationError{Op: "sample", Step: t, Batch: b, Err: err}
			}
			// mean = m_t + J·(x_{t+1} - m_{t+1|t}),  cov = P_t - J·Pp_{t+1}·Jᵀ
			dx := mat.NewVecDense(m.stateDim, nil)
			dx.SubVec(mat.NewVecDense(m.stateDim, tr.State(t+1, b)), priorNext.Mean)
			mean := mat.NewVecDense(m.stateDim, nil)
			mean.MulVec(J, dx)
			mean.AddVec(post.Mean, mean)

			cov := mat.NewDense(m.stateDim, m.stateDim, nil)
			cov.Product(J, priorNext.Covariance, J.T())
			cov.Sub(post.Covariance, cov)
			if err := s.draw(tr.State(t, b), mean, symmetrize(cov)); err != nil {
				return &SingularInnovationError{Op: "sample", Step: t, Batch: b, Err: err}
			}
		}
		for t := 0; t < steps; t++ {
			if err := m.emit(s, tr, t, b, m.At(t, b)); err != nil {
				return err
			}
		}
		return nil
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// SampleBeliefs draws one state per belief, independently: out[t] is
// batch×stateDim with row b drawn from beliefs[t][b]. Use it for marginal
// draws from smoothed beliefs. Failed beliefs give NaN rows.
func SampleBeliefs(key rng.Key, beliefs [][]Belief) ([]*mat.Dense, error) {
	if len(beliefs) == 0 {
		return nil, nil
	}
	batch := len(beliefs[0])
	if batch == 0 {
		return nil, ErrShapeMismatch("belief batch", 1, 0)
	}
	n := beliefs[0][0].Dim()
	out := make([]*mat.Dense, len(beliefs))
	for t := range out {
		if len(beliefs[t]) != batch {
			return nil, ErrShapeMismatch("belief batch", batch, len(beliefs[t]))
		}
		out[t] = mat.NewDense(batch, n, nil)
	}
	for b := 0; b < batch; b++ {
		s := newSampler(key, b)
		for t := range beliefs {
			bl := beliefs[t][b]
			if bl.Failed() {
				fillNaN(out[t].RawRowView(b))
				continue
			}
			if err := s.draw(out[t].RawRowView(b), bl.Mean, bl.Covariance); err != nil {
				return nil, &SingularInnovationError{Op: "sample", Step: t, Batch: b, Err: err}
			}
		}
	}
	return out, nil
}

func fillNaN(row []float64) {
	for i := range row {
		row[i] = math.NaN()
	}
}
