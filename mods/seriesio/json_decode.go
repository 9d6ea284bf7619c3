package seriesio

import (
	"fmt"
	"io"
	"math"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"github.com/tidwall/gjson"
)

// JSONDecoder reads observations from a JSON array of rows
//
//	[{"step": 0, "series": 1, "values": [1.5, null]}, ...]
//
// null values are missing. Shape and Steps work as in Decoder.
type JSONDecoder struct {
	Input  io.Reader
	ObsDim int
	Shape  kalman.Shape
	Steps  int
}

func NewJSONDecoder() *JSONDecoder {
	return &JSONDecoder{}
}

func (dec *JSONDecoder) Decode() (*kalman.Observations, error) {
	if dec.ObsDim <= 0 {
		return nil, fmt.Errorf("observation dim must be positive, got %d", dec.ObsDim)
	}
	content, err := io.ReadAll(dec.Input)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(content) {
		return nil, fmt.Errorf("invalid json observations")
	}
	doc := gjson.ParseBytes(content)
	if !doc.IsArray() {
		return nil, fmt.Errorf("json observations must be an array of rows")
	}

	var records []record
	var rowErr error
	doc.ForEach(func(idx, row gjson.Result) bool {
		step, series, values := row.Get("step"), row.Get("series"), row.Get("values")
		if step.Type != gjson.Number || series.Type != gjson.Number {
			rowErr = fmt.Errorf("row %d: step and series must be numbers", idx.Int())
			return false
		}
		list := values.Array()
		if len(list) != dec.ObsDim {
			rowErr = fmt.Errorf("row %d: expected %d values, got %d", idx.Int(), dec.ObsDim, len(list))
			return false
		}
		rec := record{step: int(step.Int()), series: int(series.Int()), values: make([]float64, dec.ObsDim)}
		for i, v := range list {
			switch v.Type {
			case gjson.Null:
				rec.values[i] = math.NaN()
			case gjson.Number:
				rec.values[i] = v.Float()
			case gjson.String:
				f, err := parseValue(v.Str)
				if err != nil {
					rowErr = fmt.Errorf("row %d: value %d: %w", idx.Int(), i, err)
					return false
				}
				rec.values[i] = f
			default:
				rowErr = fmt.Errorf("row %d: value %d is %s", idx.Int(), i, v.Type)
				return false
			}
		}
		records = append(records, rec)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return assemble(records, dec.ObsDim, dec.Shape, dec.Steps)
}
