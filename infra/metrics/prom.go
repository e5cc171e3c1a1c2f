package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	coremetrics "github.com/kilianp07/peakopt/core/metrics"
)

// PromConfig configures the Prometheus sink. When PushgatewayURL is set the
// metrics live in a private registry that is pushed on Close.
type PromConfig struct {
	PushgatewayURL string `json:"pushgateway_url"`
	Job            string `json:"job"`
}

// PromSink records pipeline runs in Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	units    prometheus.Gauge
	steps    prometheus.Gauge
	pusher   *push.Pusher
}

// NewPromSink registers run metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPushSink registers run metrics on a fresh registry and pushes them to
// the gateway at url when the sink is closed.
func NewPushSink(cfg PromConfig) (*PromSink, error) {
	if cfg.PushgatewayURL == "" {
		return nil, errors.New("pushgateway_url is required")
	}
	if cfg.Job == "" {
		cfg.Job = "peakopt"
	}
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		return nil, err
	}
	s.pusher = push.New(cfg.PushgatewayURL, cfg.Job).Gatherer(reg)
	return s, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peakopt_runs_total",
		Help: "Total number of optimisation runs by final stage and outcome",
	}, []string{"stage", "outcome"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "peakopt_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
	}, []string{"stage"}))
	if err != nil {
		return nil, err
	}
	units, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peakopt_units",
		Help: "Number of controllable units in the last run",
	}))
	if err != nil {
		return nil, err
	}
	steps, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peakopt_timesteps",
		Help: "Number of timesteps in the last run",
	}))
	if err != nil {
		return nil, err
	}
	return &PromSink{runs: runs, duration: duration, units: units, steps: steps}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordStage observes the stage duration.
func (s *PromSink) RecordStage(ev coremetrics.StageEvent) error {
	s.duration.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())
	return nil
}

// RecordRun counts the run and sets the size gauges.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Stage, ev.Outcome).Inc()
	if ev.Steps > 0 {
		s.units.Set(float64(ev.Units))
		s.steps.Set(float64(ev.Steps))
	}
	return nil
}

// Close pushes the collected metrics when a Pushgateway is configured.
func (s *PromSink) Close() error {
	if s.pusher == nil {
		return nil
	}
	if err := s.pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
