package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Shape is the leading batch shape of a run. Series are addressed by the
// row-major flat index of their position in the shape.
// An empty shape is a single series.
type Shape []int

func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Index returns the flat index of the series at idx.
func (s Shape) Index(idx ...int) int {
	if len(idx) != len(s) {
		panic("kalman: index rank does not match shape")
	}
	flat := 0
	for i, d := range s {
		if idx[i] < 0 || idx[i] >= d {
			panic("kalman: index out of range")
		}
		flat = flat*d + idx[i]
	}
	return flat
}

// Observations holds one batch×obsDim matrix per step.
// NaN entries mark missing components.
type Observations struct {
	Shape Shape
	Steps []*mat.Dense
}

// NewObservations returns a steps long sequence for the batch shape where
// every value is missing.
func NewObservations(shape Shape, obsDim int, steps int) *Observations {
	batch := shape.Size()
	ret := &Observations{Shape: shape, Steps: make([]*mat.Dense, steps)}
	for t := range ret.Steps {
		data := make([]float64, batch*obsDim)
		for i := range data {
			data[i] = math.NaN()
		}
		ret.Steps[t] = mat.NewDense(batch, obsDim, data)
	}
	return ret
}

// Len is the number of steps.
func (o *Observations) Len() int { return len(o.Steps) }

func (o *Observations) Batch() int { return o.Shape.Size() }

func (o *Observations) Dim() int {
	if len(o.Steps) == 0 {
		return 0
	}
	_, c := o.Steps[0].Dims()
	return c
}

// Set stores the observation of series b at step t.
func (o *Observations) Set(t, b int, y []float64) {
	o.Steps[t].SetRow(b, y)
}

// SetMissing marks the whole observation of series b at step t missing.
func (o *Observations) SetMissing(t, b int) {
	row := o.Steps[t].RawRowView(b)
	for i := range row {
		row[i] = math.NaN()
	}
}

// At returns a view of the observation of series b at step t.
func (o *Observations) At(t, b int) []float64 {
	return o.Steps[t].RawRowView(b)
}

// Series returns the observations of series b as a single-series sequence.
func (o *Observations) Series(b int) *Observations {
	ret := &Observations{Shape: Shape{}, Steps: make([]*mat.Dense, len(o.Steps))}
	for t, m := range o.Steps {
		row := append([]float64(nil), m.RawRowView(b)...)
		ret.Steps[t] = mat.NewDense(1, len(row), row)
	}
	return ret
}
