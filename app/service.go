// Package app assembles a pipeline and its sinks from the configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/peakopt/config"
	coremetrics "github.com/kilianp07/peakopt/core/metrics"
	"github.com/kilianp07/peakopt/core/pipeline"
	"github.com/kilianp07/peakopt/core/publish"
	"github.com/kilianp07/peakopt/core/runlog"
	"github.com/kilianp07/peakopt/infra/logger"

	// built-in metrics sinks and publishers
	_ "github.com/kilianp07/peakopt/infra/metrics"
	_ "github.com/kilianp07/peakopt/infra/mqtt"
)

// Service owns a configured pipeline together with the metrics sink, run
// log and publishers it reports to.
type Service struct {
	Pipeline *pipeline.Pipeline
	RunLog   runlog.Store
	sink     coremetrics.MetricsSink
	pubs     []publish.Publisher
	log      logger.Logger
}

// New creates a Service from the configuration. Extra options are applied
// after the configured ones.
func New(cfg *config.Config, opts ...pipeline.Option) (*Service, error) {
	logg := logger.New("pipeline")
	pcfg, err := cfg.Pipeline()
	if err != nil {
		return nil, err
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	svc := &Service{sink: sink, log: logg, RunLog: runlog.NopStore{}}

	store, err := runlog.NewStore(cfg.RunLog)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("run log: %w", err)
	}
	svc.RunLog = store

	pubs, err := publish.New(cfg.Publishers)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("publishers: %w", err)
	}
	svc.pubs = pubs

	all := []pipeline.Option{
		pipeline.WithLogger(logg),
		pipeline.WithMetrics(sink),
		pipeline.WithRunLog(store),
	}
	for _, p := range pubs {
		all = append(all, pipeline.WithPublisher(p))
	}
	svc.Pipeline = pipeline.New(pcfg, append(all, opts...)...)
	return svc, nil
}

// Run executes one optimisation.
func (s *Service) Run(ctx context.Context, in pipeline.Inputs, opts pipeline.RunOptions) (*pipeline.Result, error) {
	return s.Pipeline.Run(ctx, in, opts)
}

// Close flushes the metrics sink and releases the run log and publishers.
func (s *Service) Close() error {
	var errs []error
	errs = append(errs, publish.CloseAll(s.pubs))
	if c, ok := s.sink.(coremetrics.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.RunLog != nil {
		errs = append(errs, s.RunLog.Close())
	}
	return errors.Join(errs...)
}

// Plugins lists the registered metrics sinks and publishers by kind.
func Plugins() map[string][]string {
	return map[string][]string{
		"metrics":    coremetrics.SinkTypes(),
		"publishers": publish.Types(),
	}
}
