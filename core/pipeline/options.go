package pipeline

import (
	"time"

	"github.com/kilianp07/peakopt/core/logger"
	"github.com/kilianp07/peakopt/core/metrics"
	"github.com/kilianp07/peakopt/core/publish"
	"github.com/kilianp07/peakopt/core/runlog"
	"github.com/kilianp07/peakopt/core/solver"
)

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics sets the sink receiving stage and run events.
func WithMetrics(s metrics.MetricsSink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.metrics = s
		}
	}
}

// WithRunLog sets the store receiving one record per run.
func WithRunLog(s runlog.Store) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.runlog = s
		}
	}
}

// WithPublisher adds a schedule publisher.
func WithPublisher(pub publish.Publisher) Option {
	return func(p *Pipeline) {
		if pub != nil {
			p.publishers = append(p.publishers, pub)
		}
	}
}

// WithInvoker replaces the MiniZinc subprocess runner.
func WithInvoker(r solver.Runner) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.invoker = r
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}
