package tariff

import (
	"errors"
	"fmt"
	"math"
	"time"

	// Embed the zone database so that regional schedules resolve on hosts
	// without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// Window overrides the import price for local times in [Start, End).
// A window whose start is after its end wraps around midnight.
type Window struct {
	Name   string  `json:"name" yaml:"name"`
	Start  string  `json:"start" yaml:"start"`
	End    string  `json:"end" yaml:"end"`
	Import float64 `json:"import" yaml:"import"`
}

// Schedule is a fixed regional time-of-use tariff. Windows are applied in
// declaration order, so a later window wins where two overlap.
type Schedule struct {
	Timezone      string   `json:"timezone" yaml:"timezone"`
	ImportDefault float64  `json:"import_default" yaml:"import_default"`
	ExportDefault float64  `json:"export_default" yaml:"export_default"`
	Windows       []Window `json:"windows" yaml:"windows"`
}

// Tariff holds import and export prices aligned to a decision index.
type Tariff struct {
	Index  []time.Time
	Import []float64
	Export []float64
}

// SouthAustralia returns the residential tariff used by default: flat import
// and feed-in prices with a shoulder rate overnight and an off-peak rate
// around midday.
func SouthAustralia() Schedule {
	return Schedule{
		Timezone:      "Australia/Adelaide",
		ImportDefault: 0.45,
		ExportDefault: 0.15,
		Windows: []Window{
			{Name: "shoulder", Start: "01:00", End: "06:00", Import: 0.17},
			{Name: "off-peak", Start: "10:00", End: "15:00", Import: 0.20},
		},
	}
}

// ErrInvalidSchedule is returned for malformed tariff schedules.
var ErrInvalidSchedule = errors.New("invalid tariff schedule")

type window struct {
	start, end int // seconds since local midnight
	price      float64
}

func (w window) contains(sec int) bool {
	if w.start < w.end {
		return sec >= w.start && sec < w.end
	}
	return sec >= w.start || sec < w.end
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: clock time %q: %v", ErrInvalidSchedule, s, err)
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

func (s Schedule) compile() (*time.Location, []window, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidSchedule, s.Timezone, err)
	}
	if !validPrice(s.ImportDefault) || !validPrice(s.ExportDefault) {
		return nil, nil, fmt.Errorf("%w: default prices must be finite and non-negative", ErrInvalidSchedule)
	}
	ws := make([]window, 0, len(s.Windows))
	for _, w := range s.Windows {
		start, err := parseClock(w.Start)
		if err != nil {
			return nil, nil, err
		}
		end, err := parseClock(w.End)
		if err != nil {
			return nil, nil, err
		}
		if start == end {
			return nil, nil, fmt.Errorf("%w: window %q is empty", ErrInvalidSchedule, w.Name)
		}
		if !validPrice(w.Import) {
			return nil, nil, fmt.Errorf("%w: window %q price must be finite and non-negative", ErrInvalidSchedule, w.Name)
		}
		ws = append(ws, window{start: start, end: end, price: w.Import})
	}
	return loc, ws, nil
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}

// Validate checks the zone, clock times and prices.
func (s Schedule) Validate() error {
	_, _, err := s.compile()
	return err
}

// Calculate derives the import and export price series for index. Local
// time is only used to match windows; the returned index stays in UTC.
func (s Schedule) Calculate(index []time.Time) (Tariff, error) {
	loc, windows, err := s.compile()
	if err != nil {
		return Tariff{}, err
	}
	out := Tariff{
		Index:  make([]time.Time, len(index)),
		Import: make([]float64, len(index)),
		Export: make([]float64, len(index)),
	}
	for i, ts := range index {
		out.Index[i] = ts.UTC()
		out.Import[i] = s.ImportDefault
		out.Export[i] = s.ExportDefault

		local := ts.In(loc)
		sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
		for _, w := range windows {
			if w.contains(sec) {
				out.Import[i] = w.price
			}
		}
	}
	return out, nil
}
