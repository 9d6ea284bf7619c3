package seriesio

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

type BoxEncoder struct {
	writer table.Writer
	rownum int64

	Output          io.Writer
	Style           string
	SeparateColumns bool
	DrawBorder      bool
	Rownum          bool
	Heading         bool
	Precision       int
}

func NewBoxEncoder() *BoxEncoder {
	return &BoxEncoder{
		Style:           "default",
		SeparateColumns: true,
		DrawBorder:      true,
		Heading:         true,
		Precision:       6,
	}
}

func (ex *BoxEncoder) ContentType() string {
	return "plain/text"
}

func (ex *BoxEncoder) Open(columns []string) error {
	ex.writer = table.NewWriter()
	ex.writer.SetOutputMirror(ex.Output)

	var style table.Style
	switch ex.Style {
	case "bold":
		style = table.StyleBold
	case "double":
		style = table.StyleDouble
	case "light":
		style = table.StyleLight
	case "round":
		style = table.StyleRounded
	default:
		style = table.StyleDefault
	}
	style.Options.SeparateColumns = ex.SeparateColumns
	style.Options.DrawBorder = ex.DrawBorder
	ex.writer.SetStyle(style)

	if ex.Heading {
		vs := make([]any, len(columns))
		for i, h := range columns {
			vs[i] = h
		}
		if ex.Rownum {
			ex.writer.AppendHeader(table.Row(append([]any{"ROWNUM"}, vs...)))
		} else {
			ex.writer.AppendHeader(table.Row(vs))
		}
	}
	return nil
}

func (ex *BoxEncoder) AddRow(values []any) error {
	cols := make([]any, len(values))
	for i, v := range values {
		cols[i] = formatValue(v, ex.Precision, "NaN")
	}
	ex.rownum++
	if ex.Rownum {
		ex.writer.AppendRow(table.Row(append([]any{ex.rownum}, cols...)))
	} else {
		ex.writer.AppendRow(table.Row(cols))
	}
	return nil
}

func (ex *BoxEncoder) Close() error {
	if ex.writer.Length() > 0 || ex.Heading {
		ex.writer.Render()
		ex.writer.ResetRows()
	}
	return nil
}
