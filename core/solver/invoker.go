// Package solver runs the external MiniZinc engine on an encoded instance.
package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/kilianp07/peakopt/core/logger"
)

// ErrExecution matches every *ExecutionError.
var ErrExecution = errors.New("solver execution failed")

// ErrModelMissing is wrapped in the *ExecutionError returned when the model
// file does not exist.
var ErrModelMissing = errors.New("optimisation model missing")

// ExecutionError reports a solver that could not be started, exited with a
// non-zero status or was killed. Infeasible models and crashes are not told
// apart.
type ExecutionError struct {
	Binary   string
	ExitCode int // -1 when the process did not exit normally
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("solver execution failed: %s exited with status %d", e.Binary, e.ExitCode)
	}
	return fmt.Sprintf("solver execution failed: %s: %v", e.Binary, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExecution) match.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// Request names the files of a single solve.
type Request struct {
	Model  string
	Data   string
	Output string
	// Verbose asks the solver for progress output. It is written to Log,
	// or to the console when Log is nil.
	Verbose bool
	// Log receives solver stdout and stderr. When nil and not verbose the
	// output is discarded.
	Log io.Writer
}

// Runner executes a solve request.
type Runner interface {
	Run(ctx context.Context, req Request) error
}

// ModelChecker is implemented by runners that can verify a model file before
// any input is prepared.
type ModelChecker interface {
	CheckModel(path string) error
}

// commandContext builds the solver process. Tests replace it to observe the
// command line.
var commandContext = exec.CommandContext

// waitDelay bounds how long Run waits for the output pipes to close once the
// solver has been killed. Backends spawned by minizinc may hold them open.
var waitDelay = 3 * time.Second

// Invoker runs MiniZinc as a subprocess.
type Invoker struct {
	cfg    Config
	log    logger.Logger
	stdout io.Writer
}

// NewInvoker returns an Invoker for cfg. A nil logger disables logging.
func NewInvoker(cfg Config, log logger.Logger) *Invoker {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Invoker{cfg: cfg, log: log, stdout: os.Stdout}
}

// CheckModel reports a missing model file as an *ExecutionError wrapping
// ErrModelMissing.
func (i *Invoker) CheckModel(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &ExecutionError{Binary: i.cfg.Binary, ExitCode: -1, Err: fmt.Errorf("%w: %s", ErrModelMissing, path)}
	}
	return nil
}

// Args returns the command-line arguments for req.
func (i *Invoker) Args(req Request) []string {
	args := []string{
		"--solver", i.cfg.Solver,
		"--model", req.Model,
		"--data", req.Data,
		"--parallel", strconv.Itoa(i.cfg.Threads),
		"--output-to-file", req.Output,
		"--output-mode", "json",
		"--solution-separator", "",
		"--search-complete-msg", "",
	}
	if req.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

// Run blocks until the solver exits. A non-zero exit status, a failure to
// start, cancellation of ctx and the configured timeout all return an
// *ExecutionError.
func (i *Invoker) Run(ctx context.Context, req Request) error {
	if err := i.CheckModel(req.Model); err != nil {
		return err
	}
	if t := i.cfg.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	sink := req.Log
	switch {
	case sink != nil:
	case req.Verbose:
		sink = i.stdout
	default:
		sink = io.Discard
	}

	cmd := commandContext(ctx, i.cfg.Binary, i.Args(req)...)
	cmd.Stdout = sink
	cmd.Stderr = sink
	cmd.WaitDelay = waitDelay

	start := time.Now()
	i.log.Infof("running %s --solver %s on %s", i.cfg.Binary, i.cfg.Solver, req.Data)
	err := cmd.Run()
	elapsed := time.Since(start)
	if err == nil {
		i.log.Infof("solver finished in %s", elapsed.Round(time.Millisecond))
		return nil
	}

	xerr := &ExecutionError{Binary: i.cfg.Binary, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		xerr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		xerr.ExitCode = -1
		xerr.Err = fmt.Errorf("%w (%v)", ctxErr, err)
	}
	i.log.Errorf("solver failed after %s: %v", elapsed.Round(time.Millisecond), xerr)
	return xerr
}
