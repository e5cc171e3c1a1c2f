package model

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Frame is a timestamp-indexed table with one column per unit.
// Values[i][j] holds the value of Units[j] at Index[i].
type Frame struct {
	// IndexName is the label of the timestamp column, kept so that
	// written schedules carry the same header as their inputs.
	IndexName string
	Index     []time.Time
	Units     []UnitID
	Values    [][]float64
}

// NewFrame builds a frame and checks that values match the index and units.
func NewFrame(index []time.Time, units []UnitID, values [][]float64) (Frame, error) {
	f := Frame{Index: index, Units: units, Values: values}
	if err := f.CheckShape(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// CheckShape reports rows whose width differs from the number of units and
// duplicated unit columns.
func (f Frame) CheckShape() error {
	if len(f.Values) != len(f.Index) {
		return fmt.Errorf("frame has %d rows for %d timestamps", len(f.Values), len(f.Index))
	}
	for i, row := range f.Values {
		if len(row) != len(f.Units) {
			return fmt.Errorf("row %d has %d values for %d units", i, len(row), len(f.Units))
		}
	}
	seen := make(map[UnitID]struct{}, len(f.Units))
	for _, u := range f.Units {
		if _, ok := seen[u]; ok {
			return fmt.Errorf("duplicate unit column %q", u)
		}
		seen[u] = struct{}{}
	}
	return nil
}

// Len returns the number of timesteps.
func (f Frame) Len() int { return len(f.Index) }

func (f Frame) columnIndex(u UnitID) int {
	for j, c := range f.Units {
		if c == u {
			return j
		}
	}
	return -1
}

// Column returns a copy of the series for unit u.
func (f Frame) Column(u UnitID) ([]float64, bool) {
	j := f.columnIndex(u)
	if j < 0 {
		return nil, false
	}
	out := make([]float64, len(f.Values))
	for i, row := range f.Values {
		out[i] = row[j]
	}
	return out, true
}

// Reindex returns a frame with exactly the given columns in the given order.
// Columns absent from f are zero-filled; columns not listed are dropped.
func (f Frame) Reindex(units []UnitID) Frame {
	src := make([]int, len(units))
	for k, u := range units {
		src[k] = f.columnIndex(u)
	}
	values := make([][]float64, len(f.Values))
	for i, row := range f.Values {
		out := make([]float64, len(units))
		for k, j := range src {
			if j >= 0 {
				out[k] = row[j]
			}
		}
		values[i] = out
	}
	return Frame{
		IndexName: f.IndexName,
		Index:     f.Index,
		Units:     append([]UnitID(nil), units...),
		Values:    values,
	}
}

// SumColumns returns, for each timestep, the sum over the given units.
// Units missing from the frame contribute nothing.
func (f Frame) SumColumns(units []UnitID) []float64 {
	out := make([]float64, len(f.Values))
	if len(units) == 0 {
		return out
	}
	sub := f.Reindex(units)
	for i, row := range sub.Values {
		out[i] = floats.Sum(row)
	}
	return out
}

// Flatten returns the values row-major: timestep-major, unit-minor.
func (f Frame) Flatten() []float64 {
	out := make([]float64, 0, len(f.Values)*len(f.Units))
	for _, row := range f.Values {
		out = append(out, row...)
	}
	return out
}

// HasNaN reports whether any value is NaN.
func (f Frame) HasNaN() bool {
	for _, row := range f.Values {
		if floats.HasNaN(row) {
			return true
		}
	}
	return false
}
