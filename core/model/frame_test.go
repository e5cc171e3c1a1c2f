package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourly(n int) []time.Time {
	start := time.Date(2022, 7, 20, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return idx
}

func TestNewFrameShape(t *testing.T) {
	_, err := NewFrame(hourly(2), []UnitID{"a"}, [][]float64{{1}, {2, 3}})
	require.Error(t, err)

	_, err = NewFrame(hourly(2), []UnitID{"a", "a"}, [][]float64{{1, 1}, {2, 2}})
	require.Error(t, err)

	f, err := NewFrame(hourly(2), []UnitID{"a"}, [][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
}

func TestFrameReindexZeroFills(t *testing.T) {
	f, err := NewFrame(hourly(2), []UnitID{"b", "x"}, [][]float64{{1, 9}, {2, 8}})
	require.NoError(t, err)

	got := f.Reindex([]UnitID{"a", "b"})
	assert.Equal(t, []UnitID{"a", "b"}, got.Units)
	assert.Equal(t, [][]float64{{0, 1}, {0, 2}}, got.Values)
	// source untouched
	assert.Equal(t, [][]float64{{1, 9}, {2, 8}}, f.Values)
}

func TestFrameSumColumnsAndFlatten(t *testing.T) {
	f, err := NewFrame(hourly(2), []UnitID{"a", "b", "c"}, [][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	assert.Equal(t, []float64{4, 10}, f.SumColumns([]UnitID{"a", "c"}))
	assert.Equal(t, []float64{0, 0}, f.SumColumns(nil))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, f.Flatten())

	col, ok := f.Column("b")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 5}, col)
	_, ok = f.Column("z")
	assert.False(t, ok)
}

func TestFrameHasNaN(t *testing.T) {
	f, _ := NewFrame(hourly(1), []UnitID{"a"}, [][]float64{{math.NaN()}})
	if !f.HasNaN() {
		t.Fatalf("expected NaN to be detected")
	}
}

func TestSortUnits(t *testing.T) {
	in := []UnitID{"110", "17", "b", "23", "a"}
	got := SortUnits(in)
	assert.Equal(t, []UnitID{"17", "23", "110", "a", "b"}, got)
	assert.Equal(t, UnitID("110"), in[0], "input must not be reordered")
}

func TestBatterySpecValidate(t *testing.T) {
	ok := BatterySpec{Unit: "u1", CapacityWh: 5000, ChargeW: 2000, DischargeW: 2000, InitialWh: 1000, Efficiency: 0.81}
	require.NoError(t, ok.Validate())

	cases := map[string]BatterySpec{
		"negative capacity": {Unit: "u1", CapacityWh: -1, Efficiency: 0.9},
		"zero efficiency":   {Unit: "u1", Efficiency: 0},
		"efficiency > 1":    {Unit: "u1", Efficiency: 1.2},
		"nan":               {Unit: "u1", ChargeW: math.NaN(), Efficiency: 0.9},
	}
	for name, b := range cases {
		if err := b.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFleetReindex(t *testing.T) {
	fleet := Fleet{{Unit: "b", CapacityWh: 2}, {Unit: "a", CapacityWh: 1}}
	got, err := fleet.Reindex([]UnitID{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []UnitID{"a", "b"}, got.Units())

	_, err = fleet.Reindex([]UnitID{"c"})
	assert.Error(t, err)

	dup := Fleet{{Unit: "a"}, {Unit: "a"}}
	assert.Equal(t, []UnitID{"a"}, dup.Duplicates())
}
