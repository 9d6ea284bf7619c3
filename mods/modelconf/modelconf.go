// Package modelconf loads linear-Gaussian models from definition files.
//
// A definition is written either in HCL, where matrices can be built with
// functions such as eye(n) or diag([..]), or in YAML/JSON. Both formats
// share the same field names:
//
//	state_dim         = 2                    # optional, checked when given
//	obs_dim           = 1                    # optional, checked when given
//	tolerance         = 1e-9
//	transition        = [[1, 1], [0, 1]]
//	transition_cov    = diag([0.01, 0.01])
//	observation       = [[1, 0]]
//	observation_cov   = [[0.25]]
//	noise_transform   = ...
//	transition_offset = [0, 0]
//	observation_offset= [0]
//	control { matrix = [[0.5], [1]]  input = [2] }
//	initial { mean = [0, 0]  cov = eye(2) }
//
// A plain value is constant over steps and series. A term that varies is
// an object with exactly one of the keys "steps" (one value per step),
// "batch" (one value per series) or "steps_batch" (values[step][series]).
package modelconf

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"gonum.org/v1/gonum/mat"
)

var knownFields = []string{
	"state_dim", "obs_dim", "tolerance",
	"transition", "transition_cov", "observation", "observation_cov",
	"noise_transform", "transition_offset", "observation_offset",
	"control", "initial",
}

// Load reads a model definition file with the default functions.
func Load(path string) (*kalman.Model, error) {
	return NewLoader().Load(path)
}

// Load reads a model definition file. Files ending with .hcl are HCL,
// .yaml, .yml and .json are YAML.
func (ld *Loader) Load(path string) (*kalman.Model, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return ld.LoadHCL(content, path)
	case ".yaml", ".yml", ".json":
		return LoadYAML(content)
	default:
		return nil, fmt.Errorf("unknown model file type %q", path)
	}
}

// Build turns a decoded definition into a model. The tree holds
// map[string]any, []any, numbers and numeric strings, as produced by the
// HCL and YAML decoders.
func Build(tree map[string]any) (*kalman.Model, error) {
	if _, ok := tree["kind"]; ok {
		return buildKind(tree)
	}
	for k := range tree {
		if !slices.Contains(knownFields, k) {
			return nil, kalman.NewConfigurationError(k, "unknown field")
		}
	}

	var opts []kalman.ModelOption
	required := map[string]kalman.Term[mat.Matrix]{}
	for _, name := range []string{"transition", "transition_cov", "observation", "observation_cov"} {
		v, ok := tree[name]
		if !ok {
			return nil, kalman.NewConfigurationError(name, "is required")
		}
		term, err := matrixTerm(name, v)
		if err != nil {
			return nil, err
		}
		required[name] = term
	}

	if v, ok := tree["noise_transform"]; ok {
		term, err := matrixTerm("noise_transform", v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kalman.WithNoiseTransform(term))
	}
	if v, ok := tree["transition_offset"]; ok {
		term, err := vectorTerm("transition_offset", v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kalman.WithTransitionOffset(term))
	}
	if v, ok := tree["observation_offset"]; ok {
		term, err := vectorTerm("observation_offset", v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kalman.WithObservationOffset(term))
	}
	if v, ok := tree["control"]; ok {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, kalman.NewConfigurationError("control", "must be an object with matrix and input")
		}
		matrix, err := matrixTerm("control.matrix", obj["matrix"])
		if err != nil {
			return nil, err
		}
		input, err := vectorTerm("control.input", obj["input"])
		if err != nil {
			return nil, err
		}
		opts = append(opts, kalman.WithControl(matrix, input))
	}
	if v, ok := tree["initial"]; ok {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, kalman.NewConfigurationError("initial", "must be an object with mean and cov")
		}
		mean, err := vectorTerm("initial.mean", obj["mean"])
		if err != nil {
			return nil, err
		}
		cov, err := matrixTerm("initial.cov", obj["cov"])
		if err != nil {
			return nil, err
		}
		opts = append(opts, kalman.WithInitial(mean, cov))
	}
	if v, ok := tree["tolerance"]; ok {
		tol, err := toFloat("tolerance", v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kalman.WithTolerance(tol))
	}

	m, err := kalman.NewModel(required["transition"], required["transition_cov"], required["observation"], required["observation_cov"], opts...)
	if err != nil {
		return nil, err
	}

	n, k := m.Dims()
	for _, d := range []struct {
		name   string
		actual int
	}{{"state_dim", n}, {"obs_dim", k}} {
		v, ok := tree[d.name]
		if !ok {
			continue
		}
		f, err := toFloat(d.name, v)
		if err != nil {
			return nil, err
		}
		if int(f) != d.actual {
			return nil, kalman.NewConfigurationError(d.name, fmt.Sprintf("declared %d, the matrices define %d", int(f), d.actual))
		}
	}
	return m, nil
}

// layout splits a term value into its values and the constructor of
// the term layout.
func layout(name string, v any) (values []any, kind string, err error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return []any{v}, "const", nil
	}
	if len(obj) != 1 {
		return nil, "", kalman.NewConfigurationError(name, "a varying term needs exactly one of steps, batch or steps_batch")
	}
	for k, inner := range obj {
		list, ok := inner.([]any)
		if !ok || len(list) == 0 {
			return nil, "", kalman.NewConfigurationError(name, fmt.Sprintf("%s must be a non-empty list", k))
		}
		switch k {
		case "steps", "batch", "steps_batch":
			return list, k, nil
		default:
			return nil, "", kalman.NewConfigurationError(name, fmt.Sprintf("unknown term layout %q", k))
		}
	}
	return nil, "", nil
}

func makeTerm[T any](name string, v any, conv func(string, any) (T, error)) (kalman.Term[T], error) {
	if v == nil {
		return kalman.Term[T]{}, kalman.NewConfigurationError(name, "is required")
	}
	values, kind, err := layout(name, v)
	if err != nil {
		return kalman.Term[T]{}, err
	}
	convAll := func(list []any) ([]T, error) {
		ret := make([]T, len(list))
		for i, item := range list {
			if ret[i], err = conv(fmt.Sprintf("%s[%d]", name, i), item); err != nil {
				return nil, err
			}
		}
		return ret, nil
	}
	switch kind {
	case "const":
		c, err := conv(name, values[0])
		if err != nil {
			return kalman.Term[T]{}, err
		}
		return kalman.Const(c), nil
	case "steps":
		vs, err := convAll(values)
		if err != nil {
			return kalman.Term[T]{}, err
		}
		return kalman.TimeVarying(vs), nil
	case "batch":
		vs, err := convAll(values)
		if err != nil {
			return kalman.Term[T]{}, err
		}
		return kalman.Batched(vs), nil
	default:
		rows := make([][]T, len(values))
		for t, row := range values {
			list, ok := row.([]any)
			if !ok {
				return kalman.Term[T]{}, kalman.NewConfigurationError(name, fmt.Sprintf("steps_batch[%d] must be a list", t))
			}
			if rows[t], err = convAll(list); err != nil {
				return kalman.Term[T]{}, err
			}
			if len(rows[t]) != len(rows[0]) {
				return kalman.Term[T]{}, kalman.NewConfigurationError(name, fmt.Sprintf("steps_batch[%d] has %d series, expected %d", t, len(rows[t]), len(rows[0])))
			}
		}
		return kalman.TimeBatched(rows), nil
	}
}

func matrixTerm(name string, v any) (kalman.Term[mat.Matrix], error) {
	return makeTerm(name, v, toMatrix)
}

func vectorTerm(name string, v any) (kalman.Term[mat.Vector], error) {
	return makeTerm(name, v, toVector)
}

// toMatrix accepts a list of rows or a single number for a 1x1 matrix.
func toMatrix(name string, v any) (mat.Matrix, error) {
	rows, ok := v.([]any)
	if !ok {
		f, err := toFloat(name, v)
		if err != nil {
			return nil, err
		}
		return mat.NewDense(1, 1, []float64{f}), nil
	}
	if len(rows) == 0 {
		return nil, kalman.NewConfigurationError(name, "empty matrix")
	}
	var data []float64
	cols := -1
	for i, r := range rows {
		row, ok := r.([]any)
		if !ok {
			return nil, kalman.NewConfigurationError(name, fmt.Sprintf("row %d is not a list", i))
		}
		if cols >= 0 && len(row) != cols {
			return nil, kalman.NewConfigurationError(name, fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), cols))
		}
		cols = len(row)
		for j, c := range row {
			f, err := toFloat(fmt.Sprintf("%s[%d][%d]", name, i, j), c)
			if err != nil {
				return nil, err
			}
			data = append(data, f)
		}
	}
	if cols == 0 {
		return nil, kalman.NewConfigurationError(name, "empty matrix")
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// toVector accepts a list of numbers or a single number.
func toVector(name string, v any) (mat.Vector, error) {
	list, ok := v.([]any)
	if !ok {
		f, err := toFloat(name, v)
		if err != nil {
			return nil, err
		}
		return mat.NewVecDense(1, []float64{f}), nil
	}
	if len(list) == 0 {
		return nil, kalman.NewConfigurationError(name, "empty vector")
	}
	data := make([]float64, len(list))
	for i, c := range list {
		f, err := toFloat(fmt.Sprintf("%s[%d]", name, i), c)
		if err != nil {
			return nil, err
		}
		data[i] = f
	}
	return mat.NewVecDense(len(data), data), nil
}

func toFloat(name string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, kalman.NewConfigurationError(name, fmt.Sprintf("%q is not a number", n))
		}
		return f, nil
	case nil:
		return 0, kalman.NewConfigurationError(name, "is required")
	default:
		return 0, kalman.NewConfigurationError(name, fmt.Sprintf("unexpected %T", v))
	}
}
