package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the relative tolerance of the symmetry and
// positive semi-definiteness checks on covariances.
const DefaultTolerance = 1e-9

// Model is an immutable linear-Gaussian state-space model:
//
//	x_t = A_t x_{t-1} + B_t u_t + b_t + G_t w_t,  w_t ~ N(0, Q_t)
//	y_t = H_t x_t + d_t + v_t,                    v_t ~ N(0, R_t)
//
// Every matrix is a Term and may vary per step and per series.
type Model struct {
	stateDim int
	obsDim   int
	steps    int
	batch    int
	tol      float64

	transition        Term[mat.Matrix]
	transitionCov     Term[*mat.SymDense]
	observation       Term[mat.Matrix]
	observationCov    Term[*mat.SymDense]
	noiseTransform    Term[mat.Matrix]
	controlMatrix     Term[mat.Matrix]
	controlInput      Term[mat.Vector]
	transitionOffset  Term[mat.Vector]
	observationOffset Term[mat.Vector]
	initialMean       Term[mat.Vector]
	initialCov        Term[*mat.SymDense]
}

type modelConfig struct {
	tol               float64
	noiseTransform    Term[mat.Matrix]
	controlMatrix     Term[mat.Matrix]
	controlInput      Term[mat.Vector]
	transitionOffset  Term[mat.Vector]
	observationOffset Term[mat.Vector]
	initialMean       Term[mat.Vector]
	initialCov        Term[mat.Matrix]
}

type ModelOption func(*modelConfig)

// WithControl adds the known input term B_t·u_t to the transition.
func WithControl(matrix Term[mat.Matrix], input Term[mat.Vector]) ModelOption {
	return func(c *modelConfig) {
		c.controlMatrix = matrix
		c.controlInput = input
	}
}

// WithTransitionOffset adds b_t to the predicted mean.
func WithTransitionOffset(offset Term[mat.Vector]) ModelOption {
	return func(c *modelConfig) { c.transitionOffset = offset }
}

// WithObservationOffset adds d_t to the predicted observation.
func WithObservationOffset(offset Term[mat.Vector]) ModelOption {
	return func(c *modelConfig) { c.observationOffset = offset }
}

// WithNoiseTransform maps the process noise through G_t, the effective
// process covariance is G_t·Q_t·G_tᵀ.
func WithNoiseTransform(g Term[mat.Matrix]) ModelOption {
	return func(c *modelConfig) { c.noiseTransform = g }
}

// WithInitial sets the prior of the state at step 0.
func WithInitial(mean Term[mat.Vector], covariance Term[mat.Matrix]) ModelOption {
	return func(c *modelConfig) {
		c.initialMean = mean
		c.initialCov = covariance
	}
}

// WithTolerance overrides DefaultTolerance.
func WithTolerance(tol float64) ModelOption {
	return func(c *modelConfig) { c.tol = tol }
}

// NewModel validates every term and returns the model.
// Any inconsistency is reported as a *ConfigurationError.
func NewModel(transition Term[mat.Matrix], transitionCov Term[mat.Matrix], observation Term[mat.Matrix], observationCov Term[mat.Matrix], opts ...ModelOption) (*Model, error) {
	cfg := &modelConfig{tol: DefaultTolerance}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.tol <= 0 {
		return nil, NewConfigurationError("tolerance", fmt.Sprintf("must be positive, got %g", cfg.tol))
	}

	required := []struct {
		name string
		set  bool
	}{
		{"transition", transition.IsSet()},
		{"transition_cov", transitionCov.IsSet()},
		{"observation", observation.IsSet()},
		{"observation_cov", observationCov.IsSet()},
	}
	for _, r := range required {
		if !r.set {
			return nil, NewConfigurationError(r.name, "is required")
		}
	}
	for _, r := range []struct {
		name   string
		ragged string
	}{
		{"transition", transition.ragged},
		{"transition_cov", transitionCov.ragged},
		{"observation", observation.ragged},
		{"observation_cov", observationCov.ragged},
		{"noise_transform", cfg.noiseTransform.ragged},
		{"control.matrix", cfg.controlMatrix.ragged},
		{"control.input", cfg.controlInput.ragged},
		{"transition_offset", cfg.transitionOffset.ragged},
		{"observation_offset", cfg.observationOffset.ragged},
		{"initial.mean", cfg.initialMean.ragged},
		{"initial.cov", cfg.initialCov.ragged},
	} {
		if r.ragged != "" {
			return nil, NewConfigurationError(r.name, r.ragged)
		}
	}
	if cfg.controlMatrix.IsSet() != cfg.controlInput.IsSet() {
		return nil, NewConfigurationError("control", "control matrix and control input must be given together")
	}
	if cfg.initialMean.IsSet() != cfg.initialCov.IsSet() {
		return nil, NewConfigurationError("initial", "initial mean and covariance must be given together")
	}

	if transition.At(0, 0) == nil || observation.At(0, 0) == nil {
		return nil, NewConfigurationError("dims", "transition and observation matrices must not be nil")
	}
	n, _ := transition.At(0, 0).Dims()
	k, _ := observation.At(0, 0).Dims()
	noiseDim := n
	if cfg.noiseTransform.IsSet() && cfg.noiseTransform.At(0, 0) != nil {
		_, noiseDim = cfg.noiseTransform.At(0, 0).Dims()
	}
	if n == 0 || k == 0 {
		return nil, NewConfigurationError("dims", fmt.Sprintf("state and observation dims must be positive, got %d and %d", n, k))
	}

	m := &Model{
		stateDim:          n,
		obsDim:            k,
		tol:               cfg.tol,
		transition:        transition,
		observation:       observation,
		noiseTransform:    cfg.noiseTransform,
		controlMatrix:     cfg.controlMatrix,
		controlInput:      cfg.controlInput,
		transitionOffset:  cfg.transitionOffset,
		observationOffset: cfg.observationOffset,
		initialMean:       cfg.initialMean,
	}

	if err := checkMatrices("transition", transition, n, n); err != nil {
		return nil, err
	}
	if err := checkMatrices("observation", observation, k, n); err != nil {
		return nil, err
	}
	if err := checkMatrices("noise_transform", cfg.noiseTransform, n, noiseDim); err != nil {
		return nil, err
	}
	controlDim := 0
	if cfg.controlInput.IsSet() && cfg.controlInput.At(0, 0) != nil {
		controlDim = cfg.controlInput.At(0, 0).Len()
	}
	if err := checkMatrices("control_matrix", cfg.controlMatrix, n, controlDim); err != nil {
		return nil, err
	}
	if err := checkVectors("control_input", cfg.controlInput, controlDim); err != nil {
		return nil, err
	}
	if err := checkVectors("transition_offset", cfg.transitionOffset, n); err != nil {
		return nil, err
	}
	if err := checkVectors("observation_offset", cfg.observationOffset, k); err != nil {
		return nil, err
	}
	if err := checkVectors("initial_mean", cfg.initialMean, n); err != nil {
		return nil, err
	}

	var err error
	if m.transitionCov, err = covarianceTerm("transition_cov", transitionCov, noiseDim, cfg.tol); err != nil {
		return nil, err
	}
	if m.observationCov, err = covarianceTerm("observation_cov", observationCov, k, cfg.tol); err != nil {
		return nil, err
	}
	if m.initialCov, err = covarianceTerm("initial_cov", cfg.initialCov, n, cfg.tol); err != nil {
		return nil, err
	}

	layouts := []struct {
		name         string
		steps, batch int
	}{
		{"transition", transition.Steps(), transition.Batch()},
		{"transition_cov", transitionCov.Steps(), transitionCov.Batch()},
		{"observation", observation.Steps(), observation.Batch()},
		{"observation_cov", observationCov.Steps(), observationCov.Batch()},
		{"noise_transform", cfg.noiseTransform.Steps(), cfg.noiseTransform.Batch()},
		{"control_matrix", cfg.controlMatrix.Steps(), cfg.controlMatrix.Batch()},
		{"control_input", cfg.controlInput.Steps(), cfg.controlInput.Batch()},
		{"transition_offset", cfg.transitionOffset.Steps(), cfg.transitionOffset.Batch()},
		{"observation_offset", cfg.observationOffset.Steps(), cfg.observationOffset.Batch()},
		{"initial_mean", 0, cfg.initialMean.Batch()},
		{"initial_cov", 0, cfg.initialCov.Batch()},
	}
	if cfg.initialMean.Steps() > 0 || cfg.initialCov.Steps() > 0 {
		return nil, NewConfigurationError("initial", "the prior at step 0 can not be time varying")
	}
	for _, l := range layouts {
		if l.steps > 0 {
			if m.steps > 0 && m.steps != l.steps {
				return nil, NewConfigurationError(l.name, fmt.Sprintf("has %d steps, other terms have %d", l.steps, m.steps))
			}
			m.steps = l.steps
		}
		if l.batch > 0 {
			if m.batch > 0 && m.batch != l.batch {
				return nil, NewConfigurationError(l.name, fmt.Sprintf("has %d series, other terms have %d", l.batch, m.batch))
			}
			m.batch = l.batch
		}
	}
	return m, nil
}

func checkMatrices(name string, term Term[mat.Matrix], rows, cols int) error {
	return term.each(func(t, b int, v mat.Matrix) error {
		if v == nil {
			return &ConfigurationError{Field: name, Step: t, Batch: b, Reason: "is nil"}
		}
		if r, c := v.Dims(); r != rows || c != cols {
			return &ConfigurationError{Field: name, Step: t, Batch: b,
				Reason: fmt.Sprintf("dims %dx%d, expected %dx%d", r, c, rows, cols)}
		}
		if hasNaN(v) {
			return &ConfigurationError{Field: name, Step: t, Batch: b, Reason: "has non-finite entries"}
		}
		return nil
	})
}

func checkVectors(name string, term Term[mat.Vector], size int) error {
	return term.each(func(t, b int, v mat.Vector) error {
		if v == nil {
			return &ConfigurationError{Field: name, Step: t, Batch: b, Reason: "is nil"}
		}
		if v.Len() != size {
			return &ConfigurationError{Field: name, Step: t, Batch: b,
				Reason: fmt.Sprintf("length %d, expected %d", v.Len(), size)}
		}
		if hasNaN(v) {
			return &ConfigurationError{Field: name, Step: t, Batch: b, Reason: "has non-finite entries"}
		}
		return nil
	})
}

func covarianceTerm(name string, term Term[mat.Matrix], size int, tol float64) (Term[*mat.SymDense], error) {
	err := term.each(func(t, b int, v mat.Matrix) error {
		if v == nil {
			return &ConfigurationError{Field: name, Step: t, Batch: b, Reason: "is nil"}
		}
		if r, c := v.Dims(); r != size || c != size {
			return &ConfigurationError{Field: name, Step: t, Batch: b,
				Reason: fmt.Sprintf("dims %dx%d, expected %dx%d", r, c, size, size)}
		}
		if reason := checkCovariance(v, tol); reason != "" {
			return &ConfigurationError{Field: name, Step: t, Batch: b, Reason: reason}
		}
		return nil
	})
	if err != nil {
		return Term[*mat.SymDense]{}, err
	}
	return mapTerm(term, func(v mat.Matrix) *mat.SymDense { return symmetrize(v) }), nil
}

// Dims returns the state and observation dimensions.
func (m *Model) Dims() (state int, obs int) { return m.stateDim, m.obsDim }

// Steps is the number of steps of a time-varying model, 0 for a model
// that is constant over time.
func (m *Model) Steps() int { return m.steps }

// Batch is the number of series of a per-series model, 0 for a model
// shared by every series.
func (m *Model) Batch() int { return m.batch }

func (m *Model) Tolerance() float64 { return m.tol }

// HasInitial reports whether the model carries a prior for step 0.
func (m *Model) HasInitial() bool { return m.initialMean.IsSet() }

// Initial returns the model prior for series b.
func (m *Model) Initial(b int) (Belief, bool) {
	if !m.initialMean.IsSet() {
		return Belief{}, false
	}
	cov := m.initialCov.At(0, b)
	ret := Belief{Mean: mat.VecDenseCopyOf(m.initialMean.At(0, b)), Covariance: mat.NewSymDense(m.stateDim, nil)}
	ret.Covariance.CopySym(cov)
	return ret, true
}

// Params are the effective model matrices of one step of one series.
type Params struct {
	Transition        mat.Matrix
	TransitionCov     mat.Symmetric // G·Q·Gᵀ
	Observation       mat.Matrix
	ObservationCov    mat.Symmetric
	Control           mat.Vector // B·u + b, nil when the model has neither
	ObservationOffset mat.Vector // nil when absent
}

// At resolves the model for step t of series b.
// It is a pure function of (t, b).
func (m *Model) At(t, b int) Params {
	p := Params{
		Transition:     m.transition.At(t, b),
		Observation:    m.observation.At(t, b),
		ObservationCov: m.observationCov.At(t, b),
	}
	if m.noiseTransform.IsSet() {
		p.TransitionCov = sandwich(m.noiseTransform.At(t, b), m.transitionCov.At(t, b))
	} else {
		p.TransitionCov = m.transitionCov.At(t, b)
	}
	if m.controlMatrix.IsSet() || m.transitionOffset.IsSet() {
		c := mat.NewVecDense(m.stateDim, nil)
		if m.controlMatrix.IsSet() {
			c.MulVec(m.controlMatrix.At(t, b), m.controlInput.At(t, b))
		}
		if m.transitionOffset.IsSet() {
			c.AddVec(c, m.transitionOffset.At(t, b))
		}
		p.Control = c
	}
	if m.observationOffset.IsSet() {
		p.ObservationOffset = m.observationOffset.At(t, b)
	}
	return p
}

// checkRun validates the batch size and the number of steps of a run
// against the model layout.
func (m *Model) checkRun(batch, steps int) error {
	if m.batch > 0 && m.batch != batch {
		return ErrShapeMismatch("batch size", m.batch, batch)
	}
	if m.steps > 0 && steps > m.steps {
		return ErrShapeMismatch("number of steps", m.steps, steps)
	}
	return nil
}

// initialBeliefs resolves one initial belief per series.
func (m *Model) initialBeliefs(initial []Belief, batch int) ([]Belief, error) {
	ret := make([]Belief, batch)
	switch len(initial) {
	case 0:
		if !m.HasInitial() {
			return nil, ErrNoInitialBelief
		}
		for b := range ret {
			ret[b], _ = m.Initial(b)
		}
		return ret, nil
	case 1:
		for b := range ret {
			ret[b] = initial[0]
		}
	case batch:
		copy(ret, initial)
	default:
		return nil, ErrShapeMismatch("initial beliefs", batch, len(initial))
	}
	for _, bl := range ret {
		if bl.Mean == nil || bl.Covariance == nil {
			return nil, ErrShapeMismatch("initial belief state dim", m.stateDim, 0)
		}
		if bl.Mean.Len() != m.stateDim {
			return nil, ErrShapeMismatch("initial belief mean", m.stateDim, bl.Mean.Len())
		}
		if bl.Covariance.SymmetricDim() != m.stateDim {
			return nil, ErrShapeMismatch("initial belief covariance", m.stateDim, bl.Covariance.SymmetricDim())
		}
	}
	return ret, nil
}
