package cmd

import (
	"encoding/csv"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakopt/core/dzn"
	"github.com/kilianp07/peakopt/pkg/export"
)

func newTariffCmd(r *root) *cobra.Command {
	var (
		start, end string
		step       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "tariff",
		Short: "Print the import and export prices over a UTC range as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			to, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			if step <= 0 {
				return fmt.Errorf("--step must be positive")
			}
			if !to.After(from) {
				return fmt.Errorf("--end must be after --start")
			}
			cfg, err := r.config()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sched, err := cfg.TariffSchedule()
			if err != nil {
				return err
			}
			var index []time.Time
			for ts := from.UTC(); ts.Before(to); ts = ts.Add(step) {
				index = append(index, ts)
			}
			tr, err := sched.Calculate(index)
			if err != nil {
				return err
			}

			w := csv.NewWriter(cmd.OutOrStdout())
			_ = w.Write([]string{"datetime", "import", "export"})
			for i, ts := range tr.Index {
				imp, _ := dzn.FormatFloat(tr.Import[i])
				exp, _ := dzn.FormatFloat(tr.Export[i])
				_ = w.Write([]string{ts.Format(export.TimeLayout), imp, exp})
			}
			w.Flush()
			return w.Error()
		},
	}
	day := time.Now().UTC().Truncate(24 * time.Hour)
	cmd.Flags().StringVar(&start, "start", day.Format(time.RFC3339), "first timestamp (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", day.Add(24*time.Hour).Format(time.RFC3339), "end of the range, exclusive (RFC 3339)")
	cmd.Flags().DurationVar(&step, "step", 30*time.Minute, "time step")
	return cmd
}
