package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chordseq/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [DATA [VALIDATOR [TEXTLIST [OUTPUT]]]]",
		Short: "Run preflight checks on the state directory and selection inputs",
		Args:  cobra.RangeArgs(0, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			padded := make([]string, 4)
			copy(padded, args)
			in, err := selectInputs(padded)
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, in)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			return preflight.Err(results)
		},
	}
}
