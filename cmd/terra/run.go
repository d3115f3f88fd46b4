package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/richielo/basicFusion/config"
	"github.com/richielo/basicFusion/metrics"
	"github.com/richielo/basicFusion/repack"
)

func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a run plan.",
		Long: `run reads every granule listed in the plan and writes the output file.
Flags override the corresponding plan keys.`,
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := config.Load(c.v)
			if err != nil {
				return err
			}
			reg := metrics.DefaultRegistry()
			res, err := repack.Run(cmd.Context(), plan, repack.Options{Log: c.log, Metrics: reg})
			if plan.MetricsFile != "" {
				if werr := reg.WriteTextfile(plan.MetricsFile); werr != nil {
					c.log.WithError(werr).Warn("Could not write metrics")
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d granules, %d arrays, %d skipped (run %s)\n",
				res.Output, len(res.Granules), res.Arrays, len(res.Skipped), res.RunID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringP("output", "o", "", "output file")
	flags.Uint32("orbit", 0, "orbit number to subset to")
	flags.String("orbit-table", "", "binary orbit table")
	flags.Bool("fail-fast", true, "abort the run on the first failing granule")
	flags.Int("workers", 0, "unpack workers, 0 for one per CPU")
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile when done")
	c.bindFlags(flags, map[string]string{
		"output":       "output",
		"orbit.number": "orbit",
		"orbit.table":  "orbit-table",
		"fail_fast":    "fail-fast",
		"workers":      "workers",
		"metrics_file": "metrics-file",
	})
	return cmd
}
