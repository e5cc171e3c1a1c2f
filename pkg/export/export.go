// Package export writes optimised schedules for downstream consumers.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/kilianp07/peakopt/core/dzn"
	"github.com/kilianp07/peakopt/core/model"
)

// TimeLayout is the timestamp format of schedule CSV files.
const TimeLayout = "2006-01-02 15:04:05-07:00"

// WriteCSV writes f to w with one row per timestamp and one column per unit.
// The header starts with the index label of f.
func WriteCSV(w io.Writer, f model.Frame) error {
	cw := csv.NewWriter(w)
	header := append([]string{f.IndexName}, model.UnitStrings(f.Units)...)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(f.Units)+1)
	for i, ts := range f.Index {
		if len(f.Values[i]) != len(f.Units) {
			return fmt.Errorf("row %d has %d values for %d units", i, len(f.Values[i]), len(f.Units))
		}
		rec[0] = ts.Format(TimeLayout)
		for j, v := range f.Values[i] {
			rec[j+1] = formatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes f to the file at path, replacing it.
func WriteCSVFile(path string, f model.Frame) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(out, f)
}

func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s, _ := dzn.FormatFloat(v)
	return s
}

// ScheduleDocument is the JSON form of a schedule.
type ScheduleDocument struct {
	RunID         string      `json:"run_id"`
	MessageID     string      `json:"message_id,omitempty"`
	GeneratedAt   time.Time   `json:"generated_at"`
	Units         []string    `json:"units"`
	Index         []time.Time `json:"index"`
	BatteryLoad   [][]float64 `json:"battery_load"`
	SoCIndex      []time.Time `json:"soc_index,omitempty"`
	StateOfCharge [][]float64 `json:"state_of_charge_kWh,omitempty"`
}

// NewDocument builds the JSON form of sched.
func NewDocument(runID string, sched model.Schedule, now time.Time) ScheduleDocument {
	doc := ScheduleDocument{
		RunID:       runID,
		GeneratedAt: now.UTC(),
		Units:       model.UnitStrings(sched.Dispatch.Units),
		Index:       sched.Dispatch.Index,
		BatteryLoad: sched.Dispatch.Values,
	}
	if sched.SoC != nil {
		doc.SoCIndex = sched.SoC.Index
		doc.StateOfCharge = sched.SoC.Values
	}
	return doc
}

// WriteJSON writes doc to w as a single JSON value.
func WriteJSON(w io.Writer, doc ScheduleDocument) error {
	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}
