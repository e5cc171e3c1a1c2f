// Package runlog keeps the history of optimisation runs.
package runlog

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Record captures one optimisation run.
type Record struct {
	RunID       string    `json:"run_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
	Stage       string    `json:"stage"`
	Error       string    `json:"error,omitempty"`
	Units       int       `json:"units"`
	Steps       int       `json:"steps"`
	StepMinutes int       `json:"step_minutes"`
	Alpha       float64   `json:"alpha"`
	Output      string    `json:"output,omitempty"`
}

// Duration returns the wall time of the run.
func (r Record) Duration() time.Duration { return r.End.Sub(r.Start) }

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start  time.Time
	End    time.Time
	Status string
}

// Match reports whether r passes the filters. Runs are filtered on their
// start time.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Start.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Start.After(q.End) {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return true
}

// Store persists Records and supports querying. Query returns records
// ordered by start time.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }

// NewStore opens the backend selected by cfg.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendNone, "":
		return NopStore{}, nil
	case BackendJSONL:
		if cfg.MaxSizeMB > 0 {
			s, err := NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
		s, err := NewJSONLStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown run log backend %q", cfg.Backend)
	}
}

func sortByStart(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Start.Before(recs[j].Start) })
}
