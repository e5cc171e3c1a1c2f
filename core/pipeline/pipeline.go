// Package pipeline chains preprocessing, encoding, solving and decoding into
// one optimisation run and owns the scratch files it produces.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/peakopt/core/dzn"
	"github.com/kilianp07/peakopt/core/logger"
	"github.com/kilianp07/peakopt/core/metrics"
	"github.com/kilianp07/peakopt/core/model"
	"github.com/kilianp07/peakopt/core/preprocess"
	"github.com/kilianp07/peakopt/core/publish"
	"github.com/kilianp07/peakopt/core/runlog"
	"github.com/kilianp07/peakopt/core/solution"
	"github.com/kilianp07/peakopt/core/solver"
	"github.com/kilianp07/peakopt/core/tariff"
	"github.com/kilianp07/peakopt/pkg/export"
)

// Config holds the parameters shared by every run.
type Config struct {
	// Alpha weights the objective terms of the model.
	Alpha float64
	// ScratchRoot is the parent of the per-run scratch directories.
	ScratchRoot string
	Solver      solver.Config
	Tariff      tariff.Schedule
}

// Inputs are the upstream tables of one run.
type Inputs struct {
	Load  model.Frame
	Solar model.Frame
	Fleet model.Fleet
}

// RunOptions tune a single run.
type RunOptions struct {
	// Output receives the dispatch schedule CSV. Empty skips writing.
	Output string
	// SoCOutput receives the state-of-charge CSV. Setting it implies
	// StateOfCharge.
	SoCOutput string
	// StateOfCharge decodes the state of charge into the result.
	StateOfCharge bool
	// ScratchDir overrides <ScratchRoot>/run-<id>.
	ScratchDir string
	// Verbose streams solver progress to the console instead of solver.log.
	Verbose bool
	// SolverLog receives solver output instead of solver.log.
	SolverLog io.Writer
	// Cleanup removes the scratch files after a successful run.
	Cleanup bool
}

func (o RunOptions) withSoC() bool { return o.StateOfCharge || o.SoCOutput != "" }

// Result describes a successful run.
type Result struct {
	RunID     string
	Instance  *preprocess.Instance
	Schedule  model.Schedule
	Artifacts Artifacts
	// CleanedUp reports whether the scratch files were removed.
	CleanedUp bool
}

// Pipeline runs optimisations. It holds no per-run state and may be used for
// concurrent runs as long as each gets its own scratch directory.
type Pipeline struct {
	cfg        Config
	log        logger.Logger
	metrics    metrics.MetricsSink
	runlog     runlog.Store
	publishers []publish.Publisher
	invoker    solver.Runner
	now        func() time.Time
}

// New builds a Pipeline. Without options it logs nothing, records nothing and
// runs MiniZinc as configured in cfg.Solver.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		log:     logger.NopLogger{},
		metrics: metrics.NopSink{},
		runlog:  runlog.NopStore{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.invoker == nil {
		p.invoker = solver.NewInvoker(cfg.Solver, p.log)
	}
	return p
}

// run carries the state of one Run call.
type run struct {
	p       *Pipeline
	id      string
	start   time.Time
	stage   string
	inst    *preprocess.Instance
	files   Artifacts
	created []string
}

// Prepare validates the inputs without writing anything.
func (p *Pipeline) Prepare(in Inputs) (*preprocess.Instance, error) {
	inst, err := preprocess.Prepare(in.Load, in.Solar, in.Fleet, p.cfg.Tariff)
	if err != nil {
		return nil, &StageError{Stage: StagePrepare, Err: err}
	}
	return inst, nil
}

// Encode validates the inputs and writes the solver input document to path
// without solving.
func (p *Pipeline) Encode(in Inputs, path string) (*preprocess.Instance, error) {
	inst, err := p.Prepare(in)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StageError{Stage: StageEncode, Err: err}
		}
	}
	if err := dzn.WriteFile(path, inst, p.cfg.Alpha); err != nil {
		return nil, &StageError{Stage: StageEncode, Err: err}
	}
	return inst, nil
}

// Run executes one optimisation. Validation failures and a missing model
// file return before any scratch file or directory is created. On failure the
// scratch files are kept for inspection.
func (p *Pipeline) Run(ctx context.Context, in Inputs, opts RunOptions) (*Result, error) {
	r := &run{p: p, id: uuid.NewString(), start: p.now()}
	p.log.Infow("run started", map[string]any{"run_id": r.id})
	res, err := r.execute(ctx, in, opts)
	r.finish(opts, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *run) execute(ctx context.Context, in Inputs, opts RunOptions) (*Result, error) {
	if err := r.step(StagePrepare, func() error {
		if mc, ok := r.p.invoker.(solver.ModelChecker); ok {
			if err := mc.CheckModel(r.p.cfg.Solver.Model); err != nil {
				return err
			}
		}
		inst, err := preprocess.Prepare(in.Load, in.Solar, in.Fleet, r.p.cfg.Tariff)
		r.inst = inst
		return err
	}); err != nil {
		return nil, err
	}

	if err := r.step(StageEncode, func() error {
		dir := opts.ScratchDir
		if dir == "" {
			dir = filepath.Join(r.p.cfg.ScratchRoot, "run-"+r.id)
		}
		created, err := makeDirs(dir)
		if err != nil {
			return fmt.Errorf("create scratch directory: %w", err)
		}
		r.created = created
		r.files = artifactsIn(dir)
		if err := removeStale(r.files); err != nil {
			return err
		}
		return dzn.WriteFile(r.files.Data, r.inst, r.p.cfg.Alpha)
	}); err != nil {
		return nil, err
	}

	if err := r.step(StageSolve, func() error { return r.solve(ctx, opts) }); err != nil {
		return nil, err
	}

	var sched model.Schedule
	if err := r.step(StageDecode, func() error {
		var err error
		sched, err = solution.DecodeFile(r.files.Solution, r.inst.Index, r.inst.Units, opts.withSoC())
		if err != nil {
			return err
		}
		sched.Dispatch.IndexName = r.inst.Load.IndexName
		if sched.SoC != nil {
			sched.SoC.IndexName = r.inst.Load.IndexName
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := r.step(StageWrite, func() error { return writeSchedule(sched, opts) }); err != nil {
		return nil, err
	}

	r.publish(ctx, sched)

	res := &Result{RunID: r.id, Instance: r.inst, Schedule: sched, Artifacts: r.files}
	if opts.Cleanup {
		if err := cleanup(r.files, r.created); err != nil {
			r.p.log.Warnf("run %s: cleanup incomplete: %v", r.id, err)
		} else {
			res.CleanedUp = true
		}
	}
	return res, nil
}

func (r *run) solve(ctx context.Context, opts RunOptions) error {
	req := solver.Request{
		Model:   r.p.cfg.Solver.Model,
		Data:    r.files.Data,
		Output:  r.files.Solution,
		Verbose: opts.Verbose,
		Log:     opts.SolverLog,
	}
	if req.Log == nil && !opts.Verbose {
		f, err := os.Create(r.files.Log)
		if err != nil {
			return fmt.Errorf("open solver log: %w", err)
		}
		defer func() { _ = f.Close() }()
		req.Log = f
	}
	return r.p.invoker.Run(ctx, req)
}

func writeSchedule(sched model.Schedule, opts RunOptions) error {
	if opts.Output != "" {
		if err := export.WriteCSVFile(opts.Output, sched.Dispatch); err != nil {
			return fmt.Errorf("write schedule: %w", err)
		}
	}
	if opts.SoCOutput != "" && sched.SoC != nil {
		if err := export.WriteCSVFile(opts.SoCOutput, *sched.SoC); err != nil {
			return fmt.Errorf("write state of charge: %w", err)
		}
	}
	return nil
}

// step runs fn as stage, reports its duration and wraps its error.
func (r *run) step(stage string, fn func() error) error {
	r.stage = stage
	began := r.p.now()
	err := fn()
	ev := metrics.StageEvent{RunID: r.id, Stage: stage, Duration: r.p.now().Sub(began), Err: err, Time: began}
	if merr := r.p.metrics.RecordStage(ev); merr != nil {
		r.p.log.Warnf("run %s: record stage metrics: %v", r.id, merr)
	}
	if err != nil {
		r.p.log.Errorf("run %s: %s failed: %v", r.id, stage, err)
		return &StageError{Stage: stage, Err: err}
	}
	r.p.log.Debugw("stage completed", map[string]any{"run_id": r.id, "stage": stage, "duration": ev.Duration.String()})
	return nil
}

// publish hands the schedule to the publishers. Failures are logged; the
// schedule has already been written at this point.
func (r *run) publish(ctx context.Context, sched model.Schedule) {
	if rec, ok := r.p.metrics.(metrics.ScheduleRecorder); ok {
		if err := rec.RecordSchedule(r.id, sched); err != nil {
			r.p.log.Warnf("run %s: record schedule: %v", r.id, err)
		}
	}
	for _, pub := range r.p.publishers {
		if err := pub.PublishSchedule(ctx, r.id, sched); err != nil {
			r.p.log.Warnf("run %s: %v", r.id, err)
		}
	}
}

// finish records the run outcome in the metrics sink and the run log.
func (r *run) finish(opts RunOptions, err error) {
	end := r.p.now()
	ev := metrics.RunEvent{
		RunID:   r.id,
		Start:   r.start,
		End:     end,
		Outcome: metrics.OutcomeSuccess,
		Stage:   r.stage,
		Alpha:   r.p.cfg.Alpha,
	}
	rec := runlog.Record{
		RunID:  r.id,
		Start:  r.start,
		End:    end,
		Status: runlog.StatusSuccess,
		Stage:  r.stage,
		Alpha:  r.p.cfg.Alpha,
		Output: opts.Output,
	}
	if r.inst != nil {
		ev.Units, ev.Steps, ev.StepMinutes = len(r.inst.Units), len(r.inst.Index), r.inst.StepMinutes()
		rec.Units, rec.Steps, rec.StepMinutes = ev.Units, ev.Steps, ev.StepMinutes
	}
	if err != nil {
		ev.Outcome = metrics.OutcomeFailure
		rec.Status = runlog.StatusFailure
		rec.Error = err.Error()
	}
	if merr := r.p.metrics.RecordRun(ev); merr != nil {
		r.p.log.Warnf("run %s: record run metrics: %v", r.id, merr)
	}
	// The run log outlives a cancelled run context.
	if lerr := r.p.runlog.Append(context.Background(), rec); lerr != nil {
		r.p.log.Warnf("run %s: append run log: %v", r.id, lerr)
	}
	r.p.log.Infow("run finished", map[string]any{
		"run_id":   r.id,
		"status":   rec.Status,
		"stage":    r.stage,
		"duration": end.Sub(r.start).String(),
	})
}
