package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newVocabCommand(ctx *commandContext) *cobra.Command {
	var vf vocabFlags

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "List the labels of a chord vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			v, err := resolveVocabulary(cfg, vf.size, vf.file)
			if err != nil {
				return err
			}
			labels := v.Labels()
			rows := make([][]string, len(labels))
			for i, label := range labels {
				rows[i] = []string{strconv.Itoa(i), label}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tableSpec{
				Title:   fmt.Sprintf("%s (%d labels)", v.Name(), v.Size()),
				Headers: []string{"Index", "Label"},
				Rows:    rows,
				Aligns:  []columnAlignment{alignRight, alignLeft},
			}.render())
			return nil
		},
	}
	vf.register(cmd)
	return cmd
}
