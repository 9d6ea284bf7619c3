package models

import (
	"time"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"gonum.org/v1/gonum/mat"
)

type SimpleModelConfig struct {
	InitialVariance     float64
	ProcessVariance     float64
	ObservationVariance float64
}

// SimpleModel provides the most basic Kalman Filter example of modelling a Brownian time series
// in a single dimension. This is just a wrapper around the BrownianModel, with a simplified interface
// that operates directly on floating point values rather than on vectors.
type SimpleModel struct {
	*BrownianModel
}

func NewSimpleModel(initialValue float64, deltas []time.Duration, cfg SimpleModelConfig) (*SimpleModel, error) {
	model, err := NewBrownianModel(
		mat.NewVecDense(1, []float64{initialValue}),
		deltas,
		BrownianModelConfig(cfg),
	)
	if err != nil {
		return nil, err
	}
	return &SimpleModel{BrownianModel: model}, nil
}

// Observations packs scalar values of a single series; NaN values are missing.
func (s *SimpleModel) Observations(values []float64) *kalman.Observations {
	obs := kalman.NewObservations(kalman.Shape{}, 1, len(values))
	for t, v := range values {
		obs.Set(t, 0, []float64{v})
	}
	return obs
}

// Value is a helper to extract the current value from the Kalman hidden state
func (*SimpleModel) Value(state mat.Vector) float64 {
	return state.AtVec(0)
}
