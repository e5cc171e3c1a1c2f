// Package config loads the peakopt configuration from a YAML or JSON file
// with K_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/peakopt/core/factory"
	"github.com/kilianp07/peakopt/core/metrics"
	"github.com/kilianp07/peakopt/core/pipeline"
	"github.com/kilianp07/peakopt/core/runlog"
	"github.com/kilianp07/peakopt/core/solver"
	"github.com/kilianp07/peakopt/core/tariff"
)

// Defaults.
const (
	DefaultAlpha       = 0.5
	DefaultScratchRoot = "temp"
)

type Config struct {
	Alpha       float64       `json:"alpha"`
	ScratchRoot string        `json:"scratch_root"`
	Solver      solver.Config `json:"solver"`
	// Tariff is an inline tariff schedule. TariffFile points to a YAML or
	// JSON schedule instead. With neither, the South Australia schedule
	// applies.
	Tariff     *tariff.Schedule       `json:"tariff"`
	TariffFile string                 `json:"tariff_file"`
	Metrics    metrics.Config         `json:"metrics"`
	RunLog     runlog.Config          `json:"runlog"`
	Publishers []factory.ModuleConfig `json:"publishers"`
}

// Load reads the configuration at path. An empty path loads the defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Set("alpha", DefaultAlpha); err != nil {
		return nil, err
	}
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	if c.ScratchRoot == "" {
		c.ScratchRoot = DefaultScratchRoot
	}
	c.Solver.SetDefaults()
	c.RunLog.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if math.IsNaN(c.Alpha) || math.IsInf(c.Alpha, 0) {
		return fmt.Errorf("alpha must be a finite number")
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if c.Tariff != nil && c.TariffFile != "" {
		return errors.New("tariff and tariff_file are mutually exclusive")
	}
	if c.Tariff != nil {
		if err := c.Tariff.Validate(); err != nil {
			return fmt.Errorf("tariff: %w", err)
		}
	}
	if err := c.RunLog.Validate(); err != nil {
		return fmt.Errorf("runlog: %w", err)
	}
	for i, p := range c.Publishers {
		if p.Type == "" {
			return fmt.Errorf("publisher %d: type is required", i)
		}
	}
	for i, s := range c.Metrics.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics sink %d: type is required", i)
		}
	}
	return nil
}

// TariffSchedule resolves the tariff schedule in effect.
func (c Config) TariffSchedule() (tariff.Schedule, error) {
	switch {
	case c.Tariff != nil:
		return *c.Tariff, nil
	case c.TariffFile != "":
		return tariff.LoadSchedule(c.TariffFile)
	default:
		return tariff.SouthAustralia(), nil
	}
}

// Pipeline returns the pipeline settings.
func (c Config) Pipeline() (pipeline.Config, error) {
	sched, err := c.TariffSchedule()
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("tariff: %w", err)
	}
	return pipeline.Config{
		Alpha:       c.Alpha,
		ScratchRoot: c.ScratchRoot,
		Solver:      c.Solver,
		Tariff:      sched,
	}, nil
}
