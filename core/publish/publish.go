// Package publish defines the outlets optimised schedules are published to
// once a run succeeds.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/peakopt/core/factory"
	"github.com/kilianp07/peakopt/core/model"
)

// ErrPublish wraps failures to deliver a schedule.
var ErrPublish = errors.New("publish failed")

// Publisher delivers a schedule produced by a run.
type Publisher interface {
	PublishSchedule(ctx context.Context, runID string, sched model.Schedule) error
	Close() error
}

var registry = factory.NewRegistry[Publisher]()

// Register adds a publisher factory identified by name.
func Register(name string, f factory.Factory[Publisher]) error {
	return registry.Register(name, f)
}

// Types lists the registered publisher names.
func Types() []string { return registry.Types() }

// New creates one publisher per configuration entry.
func New(cfgs []factory.ModuleConfig) ([]Publisher, error) {
	pubs := make([]Publisher, 0, len(cfgs))
	for i, c := range cfgs {
		p, err := registry.Create(c)
		if err != nil {
			_ = CloseAll(pubs)
			return nil, fmt.Errorf("publisher %d: %w", i, err)
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

// CloseAll closes every publisher and joins their errors.
func CloseAll(pubs []Publisher) error {
	var errs []error
	for _, p := range pubs {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
