package kalman

import (
	"fmt"
	"strings"

	"github.com/machbase/neo-kalman/mods/logging"
)

// Policy selects how a singular covariance in one series affects the run.
type Policy int

const (
	// Strict aborts the whole run with a *SingularInnovationError.
	Strict Policy = iota
	// Isolated marks the failing series NaN from the failing step on
	// and lets the other series complete.
	Isolated
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "strict"
	case Isolated:
		return "isolated"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "isolated":
		return Isolated, nil
	default:
		return Strict, fmt.Errorf("unknown fault policy %q", s)
	}
}

type Options struct {
	Policy  Policy
	Workers int
	// Missing, when set, is treated like NaN in observations.
	Missing *float64
	Log     logging.Log
}

type Option func(*Options)

func WithPolicy(p Policy) Option {
	return func(o *Options) { o.Policy = p }
}

// WithWorkers splits the batch across n goroutines. Results do not depend on n.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithMissingValue declares an extra sentinel for missing observations.
func WithMissingValue(v float64) Option {
	return func(o *Options) { o.Missing = &v }
}

func WithLogger(l logging.Log) Option {
	return func(o *Options) { o.Log = l }
}

func makeOptions(opts []Option) *Options {
	ret := &Options{Policy: Strict, Workers: 1}
	for _, o := range opts {
		o(ret)
	}
	if ret.Workers < 1 {
		ret.Workers = 1
	}
	if ret.Log == nil {
		ret.Log = logging.GetLog("kalman")
	}
	return ret
}
