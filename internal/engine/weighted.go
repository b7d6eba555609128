package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Weighted pairs a value with its selection probability.
type Weighted[T any] struct {
	Value       T       `json:"value"`
	Probability float64 `json:"probability"`
}

// WeightedTable selects values by walking cumulative probability.
type WeightedTable[T any] struct {
	entries    []Weighted[T]
	cumulative []float64
	rescaled   bool
}

const probabilityTolerance = 1e-9

var ErrEmptyTable = errors.New("weighted table has no entries")

// NewWeightedTable builds a table from value/probability pairs. When the
// probabilities do not sum to 1 they are rescaled and a warning is logged;
// negative probabilities or a zero total are rejected.
func NewWeightedTable[T any](entries []Weighted[T]) (*WeightedTable[T], error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	total := 0.0
	for i, e := range entries {
		if e.Probability < 0 || math.IsNaN(e.Probability) || math.IsInf(e.Probability, 0) {
			return nil, fmt.Errorf("entry %d has invalid probability %v", i, e.Probability)
		}
		total += e.Probability
	}
	if total <= 0 {
		return nil, fmt.Errorf("weighted table probabilities sum to %v", total)
	}

	t := &WeightedTable[T]{
		entries:    make([]Weighted[T], len(entries)),
		cumulative: make([]float64, len(entries)),
	}
	copy(t.entries, entries)

	if math.Abs(total-1) > probabilityTolerance {
		slog.Warn("weighted table probabilities rescaled", "sum", total, "entries", len(entries))
		t.rescaled = true
		for i := range t.entries {
			t.entries[i].Probability /= total
		}
	}

	acc := 0.0
	for i, e := range t.entries {
		acc += e.Probability
		t.cumulative[i] = acc
	}
	return t, nil
}

// MustWeightedTable is NewWeightedTable for package-level tables.
func MustWeightedTable[T any](entries []Weighted[T]) *WeightedTable[T] {
	t, err := NewWeightedTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// PickIndex draws once and returns the index of the selected entry. The
// last entry absorbs any floating-point shortfall in the cumulative sum.
func (t *WeightedTable[T]) PickIndex(src Source) int {
	r := src.Draw()
	for i, c := range t.cumulative {
		if r < c {
			return i
		}
	}
	return len(t.cumulative) - 1
}

// Pick draws once and returns the selected value.
func (t *WeightedTable[T]) Pick(src Source) T {
	return t.entries[t.PickIndex(src)].Value
}

func (t *WeightedTable[T]) Len() int { return len(t.entries) }

func (t *WeightedTable[T]) Value(i int) T { return t.entries[i].Value }

// Probability returns the normalized probability of entry i.
func (t *WeightedTable[T]) Probability(i int) float64 { return t.entries[i].Probability }

// Rescaled reports whether construction had to normalize the input.
func (t *WeightedTable[T]) Rescaled() bool { return t.rescaled }

// Entries returns a copy of the normalized entries.
func (t *WeightedTable[T]) Entries() []Weighted[T] {
	out := make([]Weighted[T], len(t.entries))
	copy(out, t.entries)
	return out
}

// UniformIndex maps a draw onto [0, n) and clamps float drift.
func UniformIndex(draw float64, n int) int {
	idx := int(math.Floor(draw * float64(n)))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
