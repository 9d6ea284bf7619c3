package models

import (
	"time"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"gonum.org/v1/gonum/mat"
)

type BrownianModelConfig struct {
	InitialVariance     float64
	ProcessVariance     float64
	ObservationVariance float64
}

// BrownianModel is a random walk observed directly with noise.
// The process variance grows linearly with the length of a step.
type BrownianModel struct {
	*kalman.Model
}

// NewBrownianModel builds the model for the given step lengths. With no
// deltas every step is one second long and the model is constant over time.
func NewBrownianModel(initialState mat.Vector, deltas []time.Duration, cfg BrownianModelConfig) (*BrownianModel, error) {
	dims := initialState.Len()

	dts := seconds(deltas)
	processCov := make([]mat.Matrix, len(dts))
	for i, dt := range dts {
		processCov[i] = scaledIdentity(dims, cfg.ProcessVariance*dt)
	}
	var transitionCov kalman.Term[mat.Matrix]
	if len(deltas) == 0 {
		transitionCov = kalman.Const(processCov[0])
	} else {
		transitionCov = kalman.TimeVarying(processCov)
	}

	model, err := kalman.NewModel(
		kalman.Const[mat.Matrix](identity(dims)),
		transitionCov,
		kalman.Const[mat.Matrix](identity(dims)),
		kalman.Const[mat.Matrix](scaledIdentity(dims, cfg.ObservationVariance)),
		kalman.WithInitial(
			kalman.Const[mat.Vector](mat.VecDenseCopyOf(initialState)),
			kalman.Const[mat.Matrix](scaledIdentity(dims, cfg.InitialVariance)),
		),
	)
	if err != nil {
		return nil, err
	}
	return &BrownianModel{Model: model}, nil
}

func (m *BrownianModel) Value(state mat.Vector) mat.Vector {
	return state
}
