package kalman

import "fmt"

// Term is a model value that may be constant, vary per step, vary per
// series, or both. The zero Term is "not set".
type Term[T any] struct {
	values []T
	steps  int // 0: constant over time
	batch  int // 0: shared by every series
	ragged string
}

// Const is the same value at every step for every series.
func Const[T any](v T) Term[T] {
	return Term[T]{values: []T{v}}
}

// TimeVarying holds one value per step.
func TimeVarying[T any](vs []T) Term[T] {
	return Term[T]{values: vs, steps: len(vs)}
}

// Batched holds one value per series.
func Batched[T any](vs []T) Term[T] {
	return Term[T]{values: vs, batch: len(vs)}
}

// TimeBatched holds vs[t][b] for step t and series b.
// Every step must list the same number of series, NewModel rejects a
// ragged term.
func TimeBatched[T any](vs [][]T) Term[T] {
	if len(vs) == 0 {
		return Term[T]{}
	}
	batch := len(vs[0])
	flat := make([]T, 0, len(vs)*batch)
	for t, row := range vs {
		if len(row) != batch {
			return Term[T]{steps: len(vs), batch: batch,
				ragged: fmt.Sprintf("step %d has %d series, expected %d", t, len(row), batch)}
		}
		flat = append(flat, row...)
	}
	return Term[T]{values: flat, steps: len(vs), batch: batch}
}

func (tm Term[T]) IsSet() bool { return len(tm.values) > 0 || tm.ragged != "" }

// Steps is the number of steps of a time-varying term, 0 otherwise.
func (tm Term[T]) Steps() int { return tm.steps }

// Batch is the number of series of a batched term, 0 otherwise.
func (tm Term[T]) Batch() int { return tm.batch }

// At resolves the value for step t and series b.
func (tm Term[T]) At(t, b int) T {
	i := 0
	if tm.steps > 0 {
		i = t
	}
	if tm.batch > 0 {
		i = i*tm.batch + b
	}
	return tm.values[i]
}

// each visits every stored value with the step and series it belongs to,
// -1 meaning "all".
func (tm Term[T]) each(fn func(t, b int, v T) error) error {
	for i, v := range tm.values {
		t, b := -1, -1
		switch {
		case tm.steps > 0 && tm.batch > 0:
			t, b = i/tm.batch, i%tm.batch
		case tm.steps > 0:
			t = i
		case tm.batch > 0:
			b = i
		}
		if err := fn(t, b, v); err != nil {
			return err
		}
	}
	return nil
}

// mapTerm converts every value of a term, keeping its layout.
func mapTerm[S, T any](src Term[S], fn func(S) T) Term[T] {
	ret := Term[T]{values: make([]T, len(src.values)), steps: src.steps, batch: src.batch, ragged: src.ragged}
	for i, v := range src.values {
		ret.values[i] = fn(v)
	}
	return ret
}
