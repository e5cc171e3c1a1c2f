// Package cmd implements the peakopt command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakopt/app"
	"github.com/kilianp07/peakopt/config"
	"github.com/kilianp07/peakopt/core/pipeline"
	"github.com/kilianp07/peakopt/infra/logger"
)

// root carries the persistent flags and test hooks shared by subcommands.
type root struct {
	cfgPath string
	// opts are appended to the pipeline options of every run.
	opts []pipeline.Option
}

// NewRootCmd builds the peakopt command tree.
func NewRootCmd(opts ...pipeline.Option) *cobra.Command {
	r := &root{opts: opts}
	cmd := &cobra.Command{
		Use:           "peakopt",
		Short:         "Battery dispatch optimisation for peak shaving",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&r.cfgPath, "config", "c", "", "configuration file (yaml or json)")
	cmd.AddCommand(
		newSolveCmd(r),
		newEncodeCmd(r),
		newTariffCmd(r),
		newRunsCmd(r),
		newPluginsCmd(),
	)
	return cmd
}

// Execute runs the CLI until completion or until an interrupt is received.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		logger.New("main").Errorf("%v", err)
	}
	return err
}

func (r *root) config() (*config.Config, error) {
	return config.Load(r.cfgPath)
}

// service builds the configured service. Callers must Close it.
func (r *root) service(cfg *config.Config) (*app.Service, error) {
	return app.New(cfg, r.opts...)
}
