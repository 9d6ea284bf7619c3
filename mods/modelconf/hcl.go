package modelconf

import (
	"errors"
	"fmt"
	"maps"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Loader evaluates HCL model files with a set of functions and variables.
type Loader struct {
	functions map[string]function.Function
	variables map[string]cty.Value
}

func NewLoader() *Loader {
	return &Loader{
		functions: maps.Clone(DefaultFunctions),
		variables: make(map[string]cty.Value),
	}
}

func (ld *Loader) SetFunction(name string, f function.Function) {
	ld.functions[name] = f
}

// SetVariable makes value available to expressions as name.
func (ld *Loader) SetVariable(name string, value any) (err error) {
	if len(name) == 0 {
		return errors.New("can not define with empty name")
	}
	var v cty.Value
	switch raw := value.(type) {
	case string:
		v, err = gocty.ToCtyValue(raw, cty.String)
	case bool:
		v, err = gocty.ToCtyValue(raw, cty.Bool)
	case int, int32, int64, float32, float64:
		v, err = gocty.ToCtyValue(raw, cty.Number)
	case []float64:
		v, err = gocty.ToCtyValue(raw, cty.List(cty.Number))
	case [][]float64:
		v, err = gocty.ToCtyValue(raw, matrixType)
	default:
		return fmt.Errorf("can not define %s with value type %T", name, value)
	}
	if err == nil {
		ld.variables[name] = v
	}
	return
}

func (ld *Loader) makeContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: ld.functions,
		Variables: ld.variables,
	}
}

// LoadHCL parses and evaluates an HCL model definition.
func (ld *Loader) LoadHCL(content []byte, filename string) (*kalman.Model, error) {
	tree, err := ld.ParseHCL(content, filename)
	if err != nil {
		return nil, err
	}
	return Build(tree)
}

// ParseHCL evaluates an HCL model definition into the tree Build accepts.
func (ld *Loader) ParseHCL(content []byte, filename string) (map[string]any, error) {
	if filename == "" {
		filename = "nofile.hcl"
	}
	hclFile, hclDiag := hclsyntax.ParseConfig(content, filename, hcl.Pos{Line: 1})
	if hclDiag.HasErrors() {
		return nil, errors.New(hclDiag.Error())
	}
	obj, err := objectValFromBody(hclFile.Body.(*hclsyntax.Body), ld.makeContext())
	if err != nil {
		return nil, err
	}
	ret, err := fromCty(obj)
	if err != nil {
		return nil, err
	}
	return ret.(map[string]any), nil
}

// objectValFromBody evaluates attributes and nested blocks, a block
// becomes an object named after its type.
func objectValFromBody(body *hclsyntax.Body, evalCtx *hcl.EvalContext) (cty.Value, error) {
	rt := make(map[string]cty.Value)
	for _, attr := range body.Attributes {
		value, diag := attr.Expr.Value(evalCtx)
		if diag.HasErrors() {
			return cty.NilVal, errors.New(diag.Error())
		}
		rt[attr.Name] = value
	}
	for _, block := range body.Blocks {
		if _, exists := rt[block.Type]; exists {
			return cty.NilVal, fmt.Errorf("%s: duplicated %q", block.DefRange().String(), block.Type)
		}
		bval, err := objectValFromBody(block.Body, evalCtx)
		if err != nil {
			return cty.NilVal, err
		}
		rt[block.Type] = bval
	}
	return cty.ObjectVal(rt), nil
}

// fromCty converts an evaluated value into plain Go values:
// numbers become float64, collections []any and objects map[string]any.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, errors.New("value is not known")
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		elems := v.AsValueSlice()
		ret := make([]any, len(elems))
		for i, ev := range elems {
			e, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			ret[i] = e
		}
		return ret, nil
	case ty.IsObjectType() || ty.IsMapType():
		elems := v.AsValueMap()
		ret := make(map[string]any, len(elems))
		for k, ev := range elems {
			e, err := fromCty(ev)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			ret[k] = e
		}
		return ret, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
