package modelconf

import (
	"fmt"
	"slices"
	"time"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"github.com/machbase/neo-kalman/mods/nums/kalman/models"
)

// A definition with a "kind" field names one of the built-in models
// instead of spelling out its matrices:
//
//	kind                 = "constant_velocity"   # brownian, simple
//	initial_state        = [0, 0]
//	initial_variance     = 1
//	process_variance     = 0.01
//	observation_variance = 0.25
//	deltas               = [1, 0.5, 2]           # optional step lengths in seconds
var builtinFields = []string{
	"kind", "initial_state", "deltas",
	"initial_variance", "process_variance", "observation_variance",
}

func buildKind(tree map[string]any) (*kalman.Model, error) {
	for k := range tree {
		if !slices.Contains(builtinFields, k) {
			return nil, kalman.NewConfigurationError(k, "unknown field for a built-in model")
		}
	}
	kind, ok := tree["kind"].(string)
	if !ok {
		return nil, kalman.NewConfigurationError("kind", "must be a string")
	}

	var variances [3]float64
	for i, name := range []string{"initial_variance", "process_variance", "observation_variance"} {
		f, err := toFloat(name, tree[name])
		if err != nil {
			return nil, err
		}
		variances[i] = f
	}
	initial, err := toVector("initial_state", tree["initial_state"])
	if err != nil {
		return nil, err
	}
	deltas, err := toDeltas(tree["deltas"])
	if err != nil {
		return nil, err
	}

	switch kind {
	case "brownian":
		m, err := models.NewBrownianModel(initial, deltas, models.BrownianModelConfig{
			InitialVariance:     variances[0],
			ProcessVariance:     variances[1],
			ObservationVariance: variances[2],
		})
		if err != nil {
			return nil, err
		}
		return m.Model, nil
	case "constant_velocity":
		m, err := models.NewConstantVelocityModel(initial, deltas, models.ConstantVelocityModelConfig{
			InitialVariance:     variances[0],
			ProcessVariance:     variances[1],
			ObservationVariance: variances[2],
		})
		if err != nil {
			return nil, err
		}
		return m.Model, nil
	case "simple":
		if initial.Len() != 1 {
			return nil, kalman.NewConfigurationError("initial_state", fmt.Sprintf("simple model is scalar, got %d values", initial.Len()))
		}
		m, err := models.NewSimpleModel(initial.AtVec(0), deltas, models.SimpleModelConfig{
			InitialVariance:     variances[0],
			ProcessVariance:     variances[1],
			ObservationVariance: variances[2],
		})
		if err != nil {
			return nil, err
		}
		return m.Model, nil
	default:
		return nil, kalman.NewConfigurationError("kind", fmt.Sprintf("unknown model kind %q", kind))
	}
}

// toDeltas reads step lengths in seconds; nil means unit steps.
func toDeltas(v any) ([]time.Duration, error) {
	if v == nil {
		return nil, nil
	}
	vec, err := toVector("deltas", v)
	if err != nil {
		return nil, err
	}
	ret := make([]time.Duration, vec.Len())
	for i := range ret {
		sec := vec.AtVec(i)
		if sec < 0 {
			return nil, kalman.NewConfigurationError(fmt.Sprintf("deltas[%d]", i), "step length must not be negative")
		}
		ret[i] = time.Duration(sec * float64(time.Second))
	}
	return ret, nil
}
