package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/kilianp07/peakopt/app"
)

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the available metrics sinks and publishers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := app.Plugins()
			kinds := lo.Keys(p)
			slices.Sort(kinds)
			for _, k := range kinds {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, strings.Join(p[k], ", "))
			}
			return nil
		},
	}
}
