package kalman

import (
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// FilterResult is the belief history of a filter run.
// Index 0 of Priors and Posteriors holds the initial belief, index t+1 the
// beliefs after the observation of step t.
type FilterResult struct {
	Shape         Shape
	Priors        [][]Belief // [step][series]
	Posteriors    [][]Belief // [step][series]
	LogLikelihood []float64  // per series
	Faults        []Fault    // series that failed under the Isolated policy
}

func newFilterResult(shape Shape, steps int, batch int) *FilterResult {
	ret := &FilterResult{
		Shape:         shape,
		Priors:        make([][]Belief, steps+1),
		Posteriors:    make([][]Belief, steps+1),
		LogLikelihood: make([]float64, batch),
	}
	for t := range ret.Priors {
		ret.Priors[t] = make([]Belief, batch)
		ret.Posteriors[t] = make([]Belief, batch)
	}
	return ret
}

// Len is the number of filtered steps.
func (r *FilterResult) Len() int { return len(r.Posteriors) - 1 }

func (r *FilterResult) Batch() int { return len(r.LogLikelihood) }

// TotalLogLikelihood sums the log-likelihood of all series.
func (r *FilterResult) TotalLogLikelihood() float64 {
	sum := 0.0
	for _, v := range r.LogLikelihood {
		sum += v
	}
	return sum
}

// Series returns the priors and posteriors of series b, indexed by step.
func (r *FilterResult) Series(b int) (priors []Belief, posteriors []Belief) {
	priors = make([]Belief, len(r.Priors))
	posteriors = make([]Belief, len(r.Posteriors))
	for t := range r.Priors {
		priors[t] = r.Priors[t][b]
		posteriors[t] = r.Posteriors[t][b]
	}
	return
}

// Failed reports whether series b faulted.
func (r *FilterResult) Failed(b int) bool {
	for _, f := range r.Faults {
		if f.Batch == b {
			return true
		}
	}
	return false
}

// Filter runs predict and update over every step of obs for every series.
//
// initial holds either one belief shared by all series, one belief per
// series, or nothing, in which case the model prior is used.
func (m *Model) Filter(initial []Belief, obs *Observations, opts ...Option) (*FilterResult, error) {
	defer filterTimer.UpdateSince(time.Now())
	o := makeOptions(opts)

	if err := m.checkObservations(obs); err != nil {
		return nil, err
	}
	batch, steps := obs.Batch(), obs.Len()
	inits, err := m.initialBeliefs(initial, batch)
	if err != nil {
		return nil, err
	}

	res := newFilterResult(obs.Shape, steps, batch)
	for b, bl := range inits {
		bl = bl.Clone()
		res.Priors[0][b] = bl
		res.Posteriors[0][b] = bl
	}

	if o.Log.DebugEnabled() {
		o.Log.Debugf("filter batch=%d steps=%d workers=%d policy=%s", batch, steps, o.Workers, o.Policy)
	}
	errs := forEachSeries(batch, o.Workers, func(b int) error {
		return m.filterSeries(b, obs, res, o)
	})
	if err := collectFaults(errs, o, &res.Faults); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Model) filterSeries(b int, obs *Observations, res *FilterResult, o *Options) error {
	steps := obs.Len()
	post := res.Posteriors[0][b]
	y := make([]float64, m.obsDim)

	for t := 0; t < steps; t++ {
		p := m.At(t, b)
		prior := Predict(post, p)
		res.Priors[t+1][b] = prior

		if o.observation(obs, t, b, y) {
			missingCounter.Inc(1)
		}
		next, ll, err := Update(prior, y, p)
		if err != nil {
			serr := &SingularInnovationError{Op: "update", Step: t, Batch: b, Err: err}
			if o.Policy == Isolated {
				res.LogLikelihood[b] = math.NaN()
				for s := t + 1; s <= steps; s++ {
					res.Posteriors[s][b] = failedBelief(m.stateDim)
					if s > t+1 {
						res.Priors[s][b] = failedBelief(m.stateDim)
					}
				}
			}
			return serr
		}
		res.Posteriors[t+1][b] = next
		res.LogLikelihood[b] += ll
		post = next

		if o.Log.TraceEnabled() {
			o.Log.Tracef("filter batch=%d step=%d loglik=%g", b, t, ll)
		}
	}
	return nil
}

// observation copies the observation of series b at step t into y with
// the missing sentinel turned into NaN, and reports whether the whole
// observation is missing.
func (o *Options) observation(obs *Observations, t, b int, y []float64) bool {
	copy(y, obs.At(t, b))
	missing := true
	for i, v := range y {
		if o.Missing != nil && v == *o.Missing {
			y[i] = math.NaN()
		}
		if !IsMissing(y[i]) {
			missing = false
		}
	}
	return missing
}

func (m *Model) checkObservations(obs *Observations) error {
	if obs == nil {
		return ErrShapeMismatch("observations", 1, 0)
	}
	batch := obs.Batch()
	for _, step := range obs.Steps {
		r, c := step.Dims()
		if r != batch {
			return ErrShapeMismatch("observation batch", batch, r)
		}
		if c != m.obsDim {
			return ErrShapeMismatch("observation dim", m.obsDim, c)
		}
	}
	return m.checkRun(batch, obs.Len())
}

// forEachSeries calls fn for every series, partitioning the batch into
// contiguous chunks over at most workers goroutines. errs[b] is the
// result of fn(b).
func forEachSeries(batch, workers int, fn func(b int) error) []error {
	errs := make([]error, batch)
	if workers <= 1 || batch <= 1 {
		for b := 0; b < batch; b++ {
			errs[b] = fn(b)
		}
		return errs
	}

	chunk := (batch + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < batch; lo += chunk {
		hi := min(lo+chunk, batch)
		g.Go(func() error {
			for b := lo; b < hi; b++ {
				errs[b] = fn(b)
			}
			return nil
		})
	}
	g.Wait()
	return errs
}

// collectFaults applies the fault policy to per-series errors.
// Under Strict the earliest failure by (step, batch) is returned, which
// does not depend on the worker count.
func collectFaults(errs []error, o *Options, faults *[]Fault) error {
	var first *SingularInnovationError
	for b, err := range errs {
		if err == nil {
			continue
		}
		serr, ok := err.(*SingularInnovationError)
		if !ok {
			return err
		}
		faultCounter.Inc(1)
		if o.Policy == Isolated {
			*faults = append(*faults, Fault{Batch: b, Step: serr.Step, Err: serr})
			o.Log.Warnf("series isolated, %s", serr.Error())
			continue
		}
		if first == nil || serr.Step < first.Step {
			first = serr
		}
	}
	if first != nil {
		return first
	}
	return nil
}
