// Package models provides commonly used linear models, built as
// kalman.Model values over non-uniform time steps.
package models

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Deltas returns the time steps between origin and times[0], and between
// consecutive times. Times must not go backwards.
func Deltas(origin time.Time, times []time.Time) ([]time.Duration, error) {
	ret := make([]time.Duration, len(times))
	prev := origin
	for i, t := range times {
		if t.Before(prev) {
			return nil, fmt.Errorf("can't predict past: %s", t)
		}
		ret[i] = t.Sub(prev)
		prev = t
	}
	return ret, nil
}

func identity(n int) *mat.Dense {
	result := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		result.Set(i, i, 1.0)
	}
	return result
}

func scaledIdentity(n int, v float64) *mat.Dense {
	result := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		result.Set(i, i, v)
	}
	return result
}

// seconds turns deltas into step lengths; no deltas means a single unit step.
func seconds(deltas []time.Duration) []float64 {
	if len(deltas) == 0 {
		return []float64{1}
	}
	ret := make([]float64, len(deltas))
	for i, d := range deltas {
		ret[i] = d.Seconds()
	}
	return ret
}
