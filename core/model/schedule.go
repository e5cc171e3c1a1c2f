package model

// Schedule is the decoded dispatch plan: battery power per controllable unit
// and, when requested, the state of charge (kWh) with one trailing row for the
// state after the last decision.
type Schedule struct {
	Dispatch Frame
	SoC      *Frame
}

// Units returns the canonical unit order of the schedule.
func (s Schedule) Units() []UnitID { return s.Dispatch.Units }
