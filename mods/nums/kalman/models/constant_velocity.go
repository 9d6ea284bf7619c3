package models

import (
	"fmt"
	"time"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
	"gonum.org/v1/gonum/mat"
)

// ConstantVelocityModelConfig is used to set the variance of the process,
// of the first state and of the position measurements.
// It is assumed that the covariance of the state is a scaled identity matrix,
// so that the variance of each component of the position and velocity are identical.
type ConstantVelocityModelConfig struct {
	InitialVariance     float64
	ProcessVariance     float64
	ObservationVariance float64
}

// ConstantVelocityModel models a particle moving over time with state modelled by position
// and velocity. Only positions are observed.
type ConstantVelocityModel struct {
	*kalman.Model
	dims      int
	stateDims int
}

// NewConstantVelocityModel initialises a constant velocity model starting at rest at
// initialPosition, for the given step lengths.
func NewConstantVelocityModel(initialPosition mat.Vector, deltas []time.Duration, cfg ConstantVelocityModelConfig) (*ConstantVelocityModel, error) {
	dims := initialPosition.Len()
	stateDims := 2 * dims

	dts := seconds(deltas)
	transitions := make([]mat.Matrix, len(dts))
	processCov := make([]mat.Matrix, len(dts))
	for i, dt := range dts {
		transitions[i] = transition(dims, dt)
		// Note: This covariance is very simple, there are better ways to model the process noise
		// for constant velocity models.
		processCov[i] = scaledIdentity(stateDims, dt*cfg.ProcessVariance)
	}

	observationModel := mat.NewDense(dims, stateDims, nil)
	for i := 0; i < dims; i++ {
		observationModel.Set(i, i, 1.0)
	}

	initialState := mat.NewVecDense(stateDims, nil)
	for i := 0; i < dims; i++ {
		initialState.SetVec(i, initialPosition.AtVec(i))
	}

	transitionTerm := kalman.TimeVarying(transitions)
	covTerm := kalman.TimeVarying(processCov)
	if len(deltas) == 0 {
		transitionTerm = kalman.Const(transitions[0])
		covTerm = kalman.Const(processCov[0])
	}

	model, err := kalman.NewModel(
		transitionTerm,
		covTerm,
		kalman.Const[mat.Matrix](observationModel),
		kalman.Const[mat.Matrix](scaledIdentity(dims, cfg.ObservationVariance)),
		kalman.WithInitial(
			kalman.Const[mat.Vector](initialState),
			kalman.Const[mat.Matrix](scaledIdentity(stateDims, cfg.InitialVariance)),
		),
	)
	if err != nil {
		return nil, err
	}
	return &ConstantVelocityModel{Model: model, dims: dims, stateDims: stateDims}, nil
}

// transition advances position by velocity·dt.
func transition(dims int, dt float64) *mat.Dense {
	result := identity(2 * dims)
	for i := 0; i < dims; i++ {
		result.Set(i, dims+i, dt)
	}
	return result
}

// Position is a helper to read the position value from a state vector for this model.
func (m *ConstantVelocityModel) Position(state mat.Vector) mat.Vector {
	if state.Len() != m.stateDims {
		panic(fmt.Sprintf("state vector has incorrect number of entries: %d (expected %d)", state.Len(), m.stateDims))
	}

	result := mat.NewVecDense(m.dims, nil)
	for i := 0; i < m.dims; i++ {
		result.SetVec(i, state.AtVec(i))
	}
	return result
}

func (m *ConstantVelocityModel) Velocity(state mat.Vector) mat.Vector {
	if state.Len() != m.stateDims {
		panic(fmt.Sprintf("state vector has incorrect number of entries: %d (expected %d)", state.Len(), m.stateDims))
	}

	result := mat.NewVecDense(m.dims, nil)
	for i := 0; i < m.dims; i++ {
		result.SetVec(i, state.AtVec(i+m.dims))
	}
	return result
}
