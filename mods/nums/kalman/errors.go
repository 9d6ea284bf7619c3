package kalman

import (
	"errors"
	"fmt"
)

// ErrSingularCovariance is the cause wrapped by SingularInnovationError
// when a covariance that must be inverted is not numerically positive definite.
var ErrSingularCovariance = errors.New("covariance is not positive definite")

// ErrNoInitialBelief is returned by a run when neither the caller nor the
// model provides the belief at step 0.
var ErrNoInitialBelief = errors.New("no initial belief given and the model has no prior")

// ConfigurationError reports an invalid model. It is raised only while
// constructing a model, never in the middle of a run.
type ConfigurationError struct {
	Field  string
	Step   int // -1 when the value is not time varying
	Batch  int // -1 when the value is shared by all series
	Reason string
}

func NewConfigurationError(field string, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Step: -1, Batch: -1, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	loc := e.Field
	if e.Step >= 0 {
		loc = fmt.Sprintf("%s[step=%d]", loc, e.Step)
	}
	if e.Batch >= 0 {
		loc = fmt.Sprintf("%s[batch=%d]", loc, e.Batch)
	}
	return fmt.Sprintf("invalid model %s, %s", loc, e.Reason)
}

func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// SingularInnovationError reports a covariance that could not be factorized
// while updating or smoothing a series.
type SingularInnovationError struct {
	Op    string // "update" or "smooth"
	Step  int
	Batch int
	Err   error
}

func (e *SingularInnovationError) Error() string {
	return fmt.Sprintf("%s failed at step %d, batch %d, %s", e.Op, e.Step, e.Batch, e.Err.Error())
}

func (e *SingularInnovationError) Unwrap() error { return e.Err }

func IsSingularInnovationError(err error) bool {
	var e *SingularInnovationError
	return errors.As(err, &e)
}

// ShapeMismatchError reports observations, beliefs or batch shapes that
// do not agree with the model dimensions.
type ShapeMismatchError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch %s, expected %d, got %d", e.What, e.Expected, e.Actual)
}

func IsShapeMismatchError(err error) bool {
	var e *ShapeMismatchError
	return errors.As(err, &e)
}

var ErrShapeMismatch = func(what string, expected, actual int) error {
	return &ShapeMismatchError{What: what, Expected: expected, Actual: actual}
}

// Fault records a series that failed in isolated mode.
type Fault struct {
	Batch int
	Step  int
	Err   error
}

func (f Fault) String() string {
	return fmt.Sprintf("batch %d failed at step %d: %v", f.Batch, f.Step, f.Err)
}
