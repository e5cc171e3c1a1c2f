// Package preprocess validates load, solar and battery inputs and turns them
// into an Instance ready to be encoded for the solver.
package preprocess

import (
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/peakopt/core/model"
	"github.com/kilianp07/peakopt/core/tariff"
)

// Instance is the solver-ready bundle for one run. It is built once by
// Prepare and must not be modified afterwards.
type Instance struct {
	Step  time.Duration
	Index []time.Time
	// Units is the canonical column order used by every downstream array.
	Units []model.UnitID
	// Uncontrolled is the net load of units without a battery.
	Uncontrolled []float64
	Load         model.Frame
	Solar        model.Frame
	Fleet        model.Fleet
	Tariff       tariff.Tariff
}

// StepMinutes returns the decision step in whole minutes.
func (in *Instance) StepMinutes() int { return int(in.Step / time.Minute) }

// Prepare validates the inputs and builds an Instance. Any failed check
// returns a *ValidationError and no instance.
func Prepare(load, solar model.Frame, fleet model.Fleet, sched tariff.Schedule) (*Instance, error) {
	step, err := validate(load, solar, fleet)
	if err != nil {
		return nil, err
	}

	controllable := fleet.Units()
	uncLoad, _ := lo.Difference(load.Units, controllable)
	uncSolar, _ := lo.Difference(solar.Units, controllable)

	// Uncontrolled solar offsets uncontrolled load.
	base := load.SumColumns(uncLoad)
	floats.Sub(base, solar.SumColumns(uncSolar))

	units := model.SortUnits(controllable)
	ordered, err := fleet.Reindex(units)
	if err != nil {
		return nil, invalid(CheckBattery, "%v", err)
	}

	tr, err := sched.Calculate(load.Index)
	if err != nil {
		return nil, invalid(CheckTariff, "%v", err)
	}

	return &Instance{
		Step:         step,
		Index:        load.Index,
		Units:        units,
		Uncontrolled: base,
		Load:         load.Reindex(units),
		Solar:        solar.Reindex(units),
		Fleet:        ordered,
		Tariff:       tr,
	}, nil
}

func validate(load, solar model.Frame, fleet model.Fleet) (time.Duration, error) {
	if err := load.CheckShape(); err != nil {
		return 0, invalid(CheckShape, "load forecast: %v", err)
	}
	if err := solar.CheckShape(); err != nil {
		return 0, invalid(CheckShape, "solar forecast: %v", err)
	}
	if dup := fleet.Duplicates(); len(dup) > 0 {
		return 0, invalid(CheckShape, "battery data lists units more than once: %v", dup)
	}

	if !sameIndex(load.Index, solar.Index) {
		return 0, invalid(CheckAlignment, "load and solar time series do not align")
	}
	idx := load.Index
	if len(idx) < 2 {
		return 0, invalid(CheckLength, "need at least two timestamps to infer the step size, got %d", len(idx))
	}
	for _, ts := range idx {
		if ts.Location() != time.UTC {
			return 0, invalid(CheckTimezone, "time series not in UTC (%s at %s)", ts.Location(), ts.Format(time.RFC3339))
		}
	}

	step := idx[1].Sub(idx[0])
	for i := 1; i < len(idx); i++ {
		if d := idx[i].Sub(idx[i-1]); d != step {
			return 0, invalid(CheckStep, "step size not constant: %s at %s, expected %s", d, idx[i].Format(time.RFC3339), step)
		}
	}
	if step <= 0 {
		return 0, invalid(CheckStep, "timestamps must be strictly increasing")
	}
	if step%time.Minute != 0 {
		return 0, invalid(CheckStepMinute, "step size %s not in whole minutes", step)
	}

	if load.HasNaN() {
		return 0, invalid(CheckMissing, "load forecast contains NAs")
	}
	if solar.HasNaN() {
		return 0, invalid(CheckMissing, "solar forecast contains NAs")
	}
	for _, b := range fleet {
		if b.HasNaN() {
			return 0, invalid(CheckMissing, "battery data contains NAs (unit %s)", b.Unit)
		}
		if err := b.Validate(); err != nil {
			return 0, invalid(CheckBattery, "%v", err)
		}
	}
	return step, nil
}

func sameIndex(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
