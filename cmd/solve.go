package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakopt/core/pipeline"
)

type solveFlags struct {
	out      string
	socOut   string
	verbose  bool
	cleanup  bool
	workdir  string
	alpha    float64
	setAlpha bool
}

func newSolveCmd(r *root) *cobra.Command {
	var f solveFlags
	cmd := &cobra.Command{
		Use:   "solve <load>.csv <solar>.csv <batt>.csv",
		Short: "Optimise the battery schedules for a load and PV forecast",
		Args:  inputArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.setAlpha = cmd.Flags().Changed("alpha")
			return runSolve(cmd, r, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "schedule.csv", "battery schedule output file")
	cmd.Flags().StringVar(&f.socOut, "soc-out", "", "state of charge output file")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print solver log to console instead of to file")
	cmd.Flags().BoolVar(&f.cleanup, "cleanup", false, "remove the scratch files after a successful run")
	cmd.Flags().StringVar(&f.workdir, "workdir", "", "scratch directory instead of <scratch_root>/run-<id>")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0, "objective weight, overrides the configuration")
	return cmd
}

func runSolve(cmd *cobra.Command, r *root, f solveFlags, args []string) error {
	cfg, err := r.config()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.setAlpha {
		cfg.Alpha = f.alpha
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	in, err := readInputs(args)
	if err != nil {
		return err
	}
	svc, err := r.service(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close: %v\n", err)
		}
	}()

	opts := pipeline.RunOptions{
		Output:     f.out,
		SoCOutput:  f.socOut,
		ScratchDir: f.workdir,
		Verbose:    f.verbose,
		Cleanup:    f.cleanup,
	}
	if f.verbose {
		opts.SolverLog = cmd.OutOrStdout()
	}
	res, err := svc.Run(cmd.Context(), in, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d units x %d timesteps written to %s\n",
		res.RunID, len(res.Instance.Units), len(res.Instance.Index), f.out)
	return nil
}
