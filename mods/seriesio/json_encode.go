package seriesio

import (
	gojson "encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

// JSONEncoder writes
//
//	{"data":{"columns":[...],"rows":[[...],...]},"success":true,"reason":"success","elapse":"..."}
//
// NaN values are written as null.
type JSONEncoder struct {
	tick time.Time
	nrow int

	Output io.Writer
	// Meta is added to the document as "meta" when not empty.
	Meta map[string]any
}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{tick: time.Now()}
}

func (ex *JSONEncoder) ContentType() string {
	return "application/json"
}

func (ex *JSONEncoder) Open(columns []string) error {
	columnsJson, err := gojson.Marshal(columns)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(ex.Output, `{"data":{"columns":%s,"rows":[`, string(columnsJson))
	return err
}

func (ex *JSONEncoder) AddRow(values []any) error {
	row := make([]any, len(values))
	for i, v := range values {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			row[i] = nil
			continue
		}
		row[i] = v
	}
	buff, err := gojson.Marshal(row)
	if err != nil {
		return err
	}
	if ex.nrow > 0 {
		if _, err := ex.Output.Write([]byte(",")); err != nil {
			return err
		}
	}
	ex.nrow++
	_, err = ex.Output.Write(buff)
	return err
}

func (ex *JSONEncoder) Close() error {
	meta := ""
	if len(ex.Meta) > 0 {
		buff, err := gojson.Marshal(ex.Meta)
		if err != nil {
			return err
		}
		meta = fmt.Sprintf(`, "meta":%s`, string(buff))
	}
	_, err := fmt.Fprintf(ex.Output, `]}%s, "success":true, "reason":"success", "elapse":"%s"}`, meta, time.Since(ex.tick).String())
	return err
}
