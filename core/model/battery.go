package model

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// BatterySpec describes the battery installed at a controllable unit.
// Energy is expressed in Wh and power in W, as delivered by the upstream
// battery table.
type BatterySpec struct {
	Unit       UnitID
	CapacityWh float64 // usable energy capacity
	ChargeW    float64 // maximum charge power
	DischargeW float64 // maximum discharge power
	InitialWh  float64 // stored energy at the start of the horizon
	Efficiency float64 // round-trip efficiency in (0,1]
}

// HasNaN reports whether any numeric field is missing.
func (b BatterySpec) HasNaN() bool {
	return math.IsNaN(b.CapacityWh) || math.IsNaN(b.ChargeW) || math.IsNaN(b.DischargeW) ||
		math.IsNaN(b.InitialWh) || math.IsNaN(b.Efficiency)
}

// Validate checks that all values are finite and non-negative and that the
// efficiency lies in (0,1].
func (b BatterySpec) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"capacity", b.CapacityWh},
		{"charge power", b.ChargeW},
		{"discharge power", b.DischargeW},
		{"initial energy", b.InitialWh},
		{"efficiency", b.Efficiency},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("unit %s: %s is not a finite number", b.Unit, f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("unit %s: %s must be non-negative", b.Unit, f.name)
		}
	}
	if b.Efficiency == 0 || b.Efficiency > 1 {
		return fmt.Errorf("unit %s: efficiency must be in (0, 1]", b.Unit)
	}
	return nil
}

// Fleet is the battery table of all controllable units.
type Fleet []BatterySpec

// Units returns the unit IDs in table order.
func (f Fleet) Units() []UnitID {
	return lo.Map(f, func(b BatterySpec, _ int) UnitID { return b.Unit })
}

// Lookup returns the spec of unit u.
func (f Fleet) Lookup(u UnitID) (BatterySpec, bool) {
	return lo.Find(f, func(b BatterySpec) bool { return b.Unit == u })
}

// Duplicates returns unit IDs that appear more than once.
func (f Fleet) Duplicates() []UnitID {
	return lo.FindDuplicates(f.Units())
}

// Reindex returns the specs in the order of units. Every unit must be present.
func (f Fleet) Reindex(units []UnitID) (Fleet, error) {
	out := make(Fleet, len(units))
	for i, u := range units {
		b, ok := f.Lookup(u)
		if !ok {
			return nil, fmt.Errorf("unit %s missing from battery table", u)
		}
		out[i] = b
	}
	return out, nil
}
