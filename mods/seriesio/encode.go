package seriesio

import (
	"fmt"
	"io"
	"math"
	"strconv"
)

// Encoder writes a table of results row by row.
type Encoder interface {
	ContentType() string
	Open(columns []string) error
	AddRow(values []any) error
	Close() error
}

// NewEncoder returns the encoder of format "csv", "json" or "box".
func NewEncoder(format string, output io.Writer) (Encoder, error) {
	switch format {
	case "", "csv":
		ret := NewCSVEncoder()
		ret.Output = output
		return ret, nil
	case "json":
		ret := NewJSONEncoder()
		ret.Output = output
		return ret, nil
	case "box":
		ret := NewBoxEncoder()
		ret.Output = output
		return ret, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// WriteTable encodes all rows of tbl.
func WriteTable(enc Encoder, tbl *Table) error {
	if err := enc.Open(tbl.Columns); err != nil {
		return err
	}
	for _, row := range tbl.Rows {
		if err := enc.AddRow(row); err != nil {
			return err
		}
	}
	return enc.Close()
}

// formatValue renders a cell for the text encoders. precision < 0 uses
// the shortest representation.
func formatValue(v any, precision int, substituteNull string) string {
	switch n := v.(type) {
	case nil:
		return substituteNull
	case string:
		return n
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		if math.IsNaN(n) {
			return substituteNull
		}
		return strconv.FormatFloat(n, 'f', precision, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
