package seriesio

import (
	"encoding/csv"
	"io"
	"unicode/utf8"
)

type CSVEncoder struct {
	writer *csv.Writer

	Output         io.Writer
	Comma          rune
	Heading        bool
	Precision      int
	SubstituteNull string
}

func NewCSVEncoder() *CSVEncoder {
	return &CSVEncoder{
		Heading:        true,
		Precision:      -1,
		SubstituteNull: "NaN",
	}
}

func (ex *CSVEncoder) ContentType() string {
	return "text/csv; charset=utf-8"
}

func (ex *CSVEncoder) SetDelimiter(delimiter string) {
	delimiterRune, _ := utf8.DecodeRuneInString(delimiter)
	ex.Comma = delimiterRune
}

func (ex *CSVEncoder) Open(columns []string) error {
	ex.writer = csv.NewWriter(ex.Output)
	if ex.Comma != 0 {
		ex.writer.Comma = ex.Comma
	}
	if ex.Heading {
		return ex.writer.Write(columns)
	}
	return nil
}

func (ex *CSVEncoder) AddRow(values []any) error {
	cols := make([]string, len(values))
	for i, v := range values {
		cols[i] = formatValue(v, ex.Precision, ex.SubstituteNull)
	}
	return ex.writer.Write(cols)
}

func (ex *CSVEncoder) Close() error {
	ex.writer.Flush()
	return ex.writer.Error()
}
