// Package seriesio reads observation sequences and writes filter,
// smoother and sampler results as csv, json or box tables.
package seriesio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
)

// Decoder reads observation rows "step,series,y0,...,y(k-1)".
// Empty, NaN and null cells are missing, as are steps and series that
// have no row at all. A first row that does not start with a step number
// is taken as the header.
type Decoder struct {
	Input  io.Reader
	Comma  rune
	ObsDim int
	// Shape of the batch. When empty the batch is one series per distinct
	// series number, up to the largest one.
	Shape kalman.Shape
	// Steps fixes the length of the sequence, otherwise it is the largest
	// step number plus one.
	Steps int
}

func NewDecoder() *Decoder {
	return &Decoder{Comma: ','}
}

func (dec *Decoder) SetDelimiter(delimiter string) {
	delimiterRune, _ := utf8.DecodeRuneInString(delimiter)
	dec.Comma = delimiterRune
}

type record struct {
	step, series int
	values       []float64
}

func (dec *Decoder) Decode() (*kalman.Observations, error) {
	if dec.ObsDim <= 0 {
		return nil, fmt.Errorf("observation dim must be positive, got %d", dec.ObsDim)
	}
	reader := csv.NewReader(dec.Input)
	if dec.Comma != 0 {
		reader.Comma = dec.Comma
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []record
	for line := 1; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(fields) > 0 && !isInteger(fields[0]) {
			continue
		}
		rec, err := dec.parseRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return assemble(records, dec.ObsDim, dec.Shape, dec.Steps)
}

func (dec *Decoder) parseRecord(fields []string) (record, error) {
	if len(fields) != dec.ObsDim+2 {
		return record{}, fmt.Errorf("expected %d columns, got %d", dec.ObsDim+2, len(fields))
	}
	step, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return record{}, fmt.Errorf("step %q: %w", fields[0], err)
	}
	series, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return record{}, fmt.Errorf("series %q: %w", fields[1], err)
	}
	rec := record{step: step, series: series, values: make([]float64, dec.ObsDim)}
	for i, field := range fields[2:] {
		if rec.values[i], err = parseValue(field); err != nil {
			return record{}, fmt.Errorf("column %d: %w", i+2, err)
		}
	}
	return rec, nil
}

func isInteger(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}

func parseValue(field string) (float64, error) {
	field = strings.TrimSpace(field)
	switch strings.ToLower(field) {
	case "", "nan", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(field, 64)
}

// assemble places the records into a NaN filled observation sequence.
func assemble(records []record, obsDim int, shape kalman.Shape, steps int) (*kalman.Observations, error) {
	maxStep, maxSeries := -1, -1
	for _, r := range records {
		if r.step < 0 || r.series < 0 {
			return nil, fmt.Errorf("negative step or series in row (%d, %d)", r.step, r.series)
		}
		maxStep = max(maxStep, r.step)
		maxSeries = max(maxSeries, r.series)
	}
	if len(shape) == 0 && maxSeries >= 0 {
		shape = kalman.Shape{maxSeries + 1}
	}
	if steps == 0 {
		steps = maxStep + 1
	}
	batch := shape.Size()
	if maxSeries >= batch {
		return nil, kalman.ErrShapeMismatch("series", batch, maxSeries+1)
	}
	if maxStep >= steps {
		return nil, kalman.ErrShapeMismatch("steps", steps, maxStep+1)
	}
	obs := kalman.NewObservations(shape, obsDim, steps)
	for _, r := range records {
		obs.Set(r.step, r.series, r.values)
	}
	return obs, nil
}
