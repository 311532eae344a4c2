package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chordseq/internal/config"
	"chordseq/internal/stash"
)

func newStashCommand(ctx *commandContext) *cobra.Command {
	stashCmd := &cobra.Command{
		Use:   "stash",
		Short: "Manage entity stashes (posteriors and validation examples)",
	}
	stashCmd.AddCommand(newStashImportCommand())
	stashCmd.AddCommand(newStashListCommand())
	return stashCmd
}

func newStashImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import JSON DB",
		Short: "Import entities from a JSON document into a stash",
		Long: `Reads {"<key>": {"<field>": [[...], ...] | [...]}} and stores every entity in
the stash DB, creating it when missing. Existing keys are replaced.`,
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			dbPath, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}
			file, err := os.Open(src)
			if err != nil {
				return fmt.Errorf("open %s: %w", src, err)
			}
			defer file.Close()

			store, err := stash.Open(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			keys, err := store.ImportJSON(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entities into %s\n", len(keys), dbPath)
			return nil
		},
	}
}

func newStashListCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "ls DB",
		Short:       "List the entities in a stash",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			store, err := openStash(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			summaries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "Stash is empty")
				return nil
			}
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				fields := make([]string, 0, len(s.Fields))
				for _, f := range s.Fields {
					fields = append(fields, fmt.Sprintf("%s %dx%d", f.Name, f.Rows, f.Cols))
				}
				rows = append(rows, []string{s.Key, strings.Join(fields, ", ")})
			}
			fmt.Fprintln(out, renderTable([]string{"Key", "Fields"}, rows, nil))
			return nil
		},
	}
}
