package solver

import (
	"fmt"
	"time"
)

// Config defines how the MiniZinc executable is run.
type Config struct {
	// Binary is the MiniZinc executable name or path.
	Binary string `json:"binary"`
	// Solver is the backend passed to --solver (e.g. "gurobi", "cbc").
	Solver string `json:"solver"`
	// Threads is passed to --parallel.
	Threads int `json:"threads"`
	// Model is the path of the .mzn model file.
	Model string `json:"model"`
	// TimeoutSeconds kills the solver after this many seconds; 0 disables it.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Binary == "" {
		c.Binary = "minizinc"
	}
	if c.Solver == "" {
		c.Solver = "gurobi"
	}
	if c.Threads == 0 {
		c.Threads = 8
	}
	if c.Model == "" {
		c.Model = "model/peak_model.mzn"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("solver binary is required")
	}
	if c.Solver == "" {
		return fmt.Errorf("solver backend is required")
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	return nil
}

// Timeout returns the configured timeout, zero when disabled.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
