package modelconf

import (
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// DefaultFunctions are available in every HCL model file.
var DefaultFunctions = map[string]function.Function{
	"eye":   EyeFunc,
	"zeros": ZerosFunc,
	"fill":  FillFunc,
	"diag":  DiagFunc,
	"env":   GetEnvFunc,
	"min":   stdlib.MinFunc,
	"max":   stdlib.MaxFunc,
	"abs":   stdlib.AbsoluteFunc,
}

var matrixType = cty.List(cty.List(cty.Number))

func matrixVal(rows, cols int, fn func(i, j int) float64) cty.Value {
	rv := make([]cty.Value, rows)
	for i := range rv {
		cv := make([]cty.Value, cols)
		for j := range cv {
			cv[j] = cty.NumberFloatVal(fn(i, j))
		}
		rv[i] = cty.ListVal(cv)
	}
	return cty.ListVal(rv)
}

func dimsArg(name string, args ...cty.Value) ([]int, error) {
	ret := make([]int, len(args))
	for i, a := range args {
		if err := gocty.FromCtyValue(a, &ret[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if ret[i] <= 0 {
			return nil, fmt.Errorf("%s: dimension must be positive, got %d", name, ret[i])
		}
	}
	return ret, nil
}

var EyeFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "n", Type: cty.Number},
	},
	Type: function.StaticReturnType(matrixType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		d, err := dimsArg("eye", args[0])
		if err != nil {
			return cty.NilVal, err
		}
		return matrixVal(d[0], d[0], func(i, j int) float64 {
			if i == j {
				return 1
			}
			return 0
		}), nil
	},
})

var ZerosFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "rows", Type: cty.Number},
		{Name: "cols", Type: cty.Number},
	},
	Type: function.StaticReturnType(matrixType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		d, err := dimsArg("zeros", args[0], args[1])
		if err != nil {
			return cty.NilVal, err
		}
		return matrixVal(d[0], d[1], func(i, j int) float64 { return 0 }), nil
	},
})

var FillFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "rows", Type: cty.Number},
		{Name: "cols", Type: cty.Number},
		{Name: "value", Type: cty.Number},
	},
	Type: function.StaticReturnType(matrixType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		d, err := dimsArg("fill", args[0], args[1])
		if err != nil {
			return cty.NilVal, err
		}
		var v float64
		if err := gocty.FromCtyValue(args[2], &v); err != nil {
			return cty.NilVal, fmt.Errorf("fill: %w", err)
		}
		return matrixVal(d[0], d[1], func(i, j int) float64 { return v }), nil
	},
})

// DiagFunc builds a square matrix with the given diagonal.
var DiagFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "diagonal", Type: cty.List(cty.Number)},
	},
	Type: function.StaticReturnType(matrixType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		var diag []float64
		if err := gocty.FromCtyValue(args[0], &diag); err != nil {
			return cty.NilVal, fmt.Errorf("diag: %w", err)
		}
		if len(diag) == 0 {
			return cty.NilVal, fmt.Errorf("diag: empty diagonal")
		}
		return matrixVal(len(diag), len(diag), func(i, j int) float64 {
			if i == j {
				return diag[i]
			}
			return 0
		}), nil
	},
})

var GetEnvFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{
			Name:             "env",
			Type:             cty.String,
			AllowDynamicType: true,
		},
		{
			Name:      "default",
			Type:      cty.String,
			AllowNull: true,
		},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		in := args[0].AsString()
		def := ""
		if !args[1].IsNull() {
			def = args[1].AsString()
		}
		out, ok := os.LookupEnv(in)
		if !ok {
			out = def
		}
		return cty.StringVal(out), nil
	},
})
