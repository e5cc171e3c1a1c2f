package metrics

import (
	"time"

	"github.com/kilianp07/peakopt/core/model"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// StageEvent is emitted once per pipeline stage.
type StageEvent struct {
	RunID    string
	Stage    string
	Duration time.Duration
	Err      error
	Time     time.Time
}

// Outcome reports success or failure of the stage.
func (e StageEvent) Outcome() string {
	if e.Err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// RunEvent summarises one optimisation run. Stage is the last stage reached,
// on failure the one that failed.
type RunEvent struct {
	RunID       string
	Start       time.Time
	End         time.Time
	Outcome     string
	Stage       string
	Units       int
	Steps       int
	StepMinutes int
	Alpha       float64
}

// MetricsSink records pipeline activity for observability purposes.
type MetricsSink interface {
	RecordStage(ev StageEvent) error
	RecordRun(ev RunEvent) error
}

// ScheduleRecorder is implemented by sinks able to store the optimised
// schedule itself.
type ScheduleRecorder interface {
	RecordSchedule(runID string, s model.Schedule) error
}

// Closer is implemented by sinks holding connections or buffered data.
type Closer interface {
	Close() error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordStage(StageEvent) error                { return nil }
func (NopSink) RecordRun(RunEvent) error                    { return nil }
func (NopSink) RecordSchedule(string, model.Schedule) error { return nil }
func (NopSink) Close() error                                { return nil }
