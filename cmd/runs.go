package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakopt/core/runlog"
)

func newRunsCmd(r *root) *cobra.Command {
	var (
		since, until time.Duration
		status       string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded optimisation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := r.config()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.RunLog.Backend == runlog.BackendNone {
				return fmt.Errorf("run log disabled, set runlog.backend in the configuration")
			}
			store, err := runlog.NewStore(cfg.RunLog)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			now := time.Now()
			q := runlog.Query{Status: status}
			if since > 0 {
				q.Start = now.Add(-since)
			}
			if until > 0 {
				q.End = now.Add(-until)
			}
			recs, err := store.Query(cmd.Context(), q)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTART\tDURATION\tSTATUS\tSTAGE\tUNITS\tSTEPS\tERROR")
			for _, rec := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					rec.RunID, rec.Start.Format(time.RFC3339), rec.Duration().Round(time.Millisecond),
					rec.Status, rec.Stage, rec.Units, rec.Steps, rec.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "only runs started within this duration")
	cmd.Flags().DurationVar(&until, "until", 0, "only runs started before now minus this duration")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (success or failure)")
	return cmd
}
