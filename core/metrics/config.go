// Package metrics defines the sinks recording optimisation runs. Sinks such
// as PromSink and InfluxSink live in infra/metrics and register themselves
// with the factory; several configured sinks are combined in a MultiSink.
package metrics

import "github.com/kilianp07/peakopt/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}
