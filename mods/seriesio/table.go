package seriesio

import (
	"fmt"

	"github.com/machbase/neo-kalman/mods/nums/kalman"
)

// Table is a result flattened into rows.
type Table struct {
	Columns []string
	Rows    [][]any
}

func indexed(prefix string, n int) []string {
	ret := make([]string, n)
	for i := range ret {
		ret[i] = fmt.Sprintf("%s_%d", prefix, i)
	}
	return ret
}

// BeliefTable has one row per step and series with the mean and the
// marginal variances of the belief.
func BeliefTable(beliefs [][]kalman.Belief) *Table {
	n := 0
	if len(beliefs) > 0 && len(beliefs[0]) > 0 {
		n = beliefs[0][0].Dim()
	}
	ret := &Table{Columns: append(append([]string{"STEP", "SERIES"}, indexed("MEAN", n)...), indexed("VAR", n)...)}
	for t, row := range beliefs {
		for b, bl := range row {
			values := make([]any, 0, 2+2*n)
			values = append(values, t, b)
			for i := 0; i < n; i++ {
				values = append(values, bl.Mean.AtVec(i))
			}
			for i := 0; i < n; i++ {
				values = append(values, bl.Covariance.At(i, i))
			}
			ret.Rows = append(ret.Rows, values)
		}
	}
	return ret
}

// LogLikelihoodTable lists the log-likelihood of every series, and the
// step at which it failed under the isolated policy.
func LogLikelihoodTable(fr *kalman.FilterResult) *Table {
	failed := map[int]int{}
	for _, f := range fr.Faults {
		failed[f.Batch] = f.Step
	}
	ret := &Table{Columns: []string{"SERIES", "LOGLIK", "FAILED_STEP"}}
	for b, ll := range fr.LogLikelihood {
		var step any
		if s, ok := failed[b]; ok {
			step = s
		}
		ret.Rows = append(ret.Rows, []any{b, ll, step})
	}
	return ret
}

// TrajectoryTable has one row per step and series with the state and the
// observation emitted at that step. Step 0 has no observation.
func TrajectoryTable(tr *kalman.Trajectory) *Table {
	n, k := 0, tr.Observations.Dim()
	if len(tr.States) > 0 {
		_, n = tr.States[0].Dims()
	}
	ret := &Table{Columns: append(append([]string{"STEP", "SERIES"}, indexed("X", n)...), indexed("Y", k)...)}
	for t := range tr.States {
		batch, _ := tr.States[t].Dims()
		for b := 0; b < batch; b++ {
			values := make([]any, 0, 2+n+k)
			values = append(values, t, b)
			for _, v := range tr.State(t, b) {
				values = append(values, v)
			}
			for i := 0; i < k; i++ {
				if t == 0 {
					values = append(values, nil)
				} else {
					values = append(values, tr.Observations.At(t-1, b)[i])
				}
			}
			ret.Rows = append(ret.Rows, values)
		}
	}
	return ret
}
