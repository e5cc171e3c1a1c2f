package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/peakopt/core/pipeline"
)

func newEncodeCmd(r *root) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "encode <load>.csv <solar>.csv <batt>.csv",
		Short: "Write the MiniZinc data file without solving",
		Args:  inputArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := r.config()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("alpha") {
				if cfg.Alpha, err = cmd.Flags().GetFloat64("alpha"); err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			pcfg, err := cfg.Pipeline()
			if err != nil {
				return err
			}
			in, err := readInputs(args)
			if err != nil {
				return err
			}
			inst, err := pipeline.New(pcfg, r.opts...).Encode(in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d units x %d timesteps (%d min) written to %s\n",
				len(inst.Units), len(inst.Index), inst.StepMinutes(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "instance.dzn", "data file to write")
	cmd.Flags().Float64("alpha", 0, "objective weight, overrides the configuration")
	return cmd
}
