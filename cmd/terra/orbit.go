package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/richielo/basicFusion/orbit"
)

func (c *cli) orbitCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "orbit TABLE [NUMBER]",
		Short: "Print an orbit's time window.",
		Long: `orbit looks NUMBER up in a binary orbit table and prints its UTC start
and end times along with the window in every supported epoch. With --list
every orbit in the table is printed.`,
		Args:              cobra.RangeArgs(1, 2),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			table, err := orbit.ReadTable(f)
			if err != nil {
				return err
			}
			if list {
				for _, rec := range table {
					fmt.Fprintln(cmd.OutOrStdout(), rec)
				}
				return nil
			}
			if len(args) != 2 {
				return fmt.Errorf("orbit number required")
			}
			n, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("bad orbit number %q: %w", args[1], err)
			}
			rec, err := table.Lookup(uint32(n))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec)
			for _, e := range []orbit.Epoch{orbit.TAI93, orbit.Julian} {
				w, err := rec.Window(e)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-6s %.6f to %.6f\n", e, w.Start, w.End)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print every orbit in the table")
	return cmd
}
