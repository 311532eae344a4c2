package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"chordseq/internal/config"
	"chordseq/internal/decode"
	"chordseq/internal/runlog"
	"chordseq/internal/sweep"
)

type vocabFlags struct {
	size int
	file string
}

func (f *vocabFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.size, "vocab", 0, "Built-in vocabulary size (25, 61 or 157)")
	cmd.Flags().StringVar(&f.file, "vocab-file", "", "Vocabulary text list, one label per line")
}

func newDecodeCommand(ctx *commandContext) *cobra.Command {
	var (
		penalty    float64
		keys       []string
		exhaustive bool
		vf         vocabFlags
	)

	cmd := &cobra.Command{
		Use:   "decode STASH OUTDIR",
		Short: "Decode every posterior in a stash into chord annotations",
		Long: `Runs the penalised Viterbi decoder over every posterior entity in STASH and
writes one <key>.json annotation per entity into OUTDIR. Decodes run in
parallel and require batch mode.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := (sweep.Options{BatchMode: cfg.Decode.BatchMode}).Require("decode_batch"); err != nil {
				return err
			}
			if !cmd.Flags().Changed("penalty") {
				penalty = cfg.Decode.Penalty
			}
			stashPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			outDir, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}

			v, err := resolveVocabulary(cfg, vf.size, vf.file)
			if err != nil {
				return err
			}
			store, err := openStash(cmd.Context(), stashPath)
			if err != nil {
				return err
			}
			defer store.Close()
			entities, err := loadEntities(cmd.Context(), store, keys)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			session, err := ctx.startRun(cmd.Context(), runlog.KindDecode)
			if err != nil {
				return err
			}
			opts := sweep.Options{
				Workers:   cfg.Decode.Workers,
				BatchMode: cfg.Decode.BatchMode,
				Decode:    decode.Options{Exhaustive: exhaustive || cfg.Decode.Exhaustive},
				Logger:    session.logger,
			}
			annotations, decodeErr := sweep.DecodeBatch(session.ctx, entities, penalty, v, opts)
			if annotations == nil {
				return session.finish(runlog.Outcome{Output: outDir}, decodeErr)
			}

			entries := make([]runlog.DecodeEntry, 0, len(entities))
			rows := make([][]string, 0, len(entities))
			var writeErr error
			for _, key := range sweep.SortedKeys(entities) {
				entry := runlog.DecodeEntry{Key: key, Penalty: penalty}
				ann, ok := annotations[key]
				switch {
				case !ok:
					entry.Error = "decode failed"
				default:
					path := filepath.Join(outDir, annotationFileName(key))
					if err := ann.WriteFile(path); err != nil {
						entry.Error = err.Error()
						if writeErr == nil {
							writeErr = fmt.Errorf("write %s: %w", path, err)
						}
						break
					}
					entry.Intervals = ann.Len()
					entry.MeanConfidence = ann.MeanConfidence()
				}
				entries = append(entries, entry)
				rows = append(rows, decodeRow(entry))
			}
			session.recordDecodes(entries)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tableSpec{
				Title:   fmt.Sprintf("Decoded at penalty %s (%s)", formatPenalty(penalty), v.Name()),
				Headers: []string{"Key", "Intervals", "Mean confidence", "Status"},
				Rows:    rows,
				Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			}.render())
			runErr := decodeErr
			if runErr == nil {
				runErr = writeErr
			}
			if runErr == nil {
				fmt.Fprintf(out, "Wrote %d annotations to %s\n", len(annotations), outDir)
			}
			return session.finish(runlog.Outcome{Output: outDir}, runErr)
		},
	}

	cmd.Flags().Float64Var(&penalty, "penalty", 0, "Self-transition penalty (default from config)")
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "Decode only these stash keys")
	cmd.Flags().BoolVar(&exhaustive, "exhaustive", false, "Compare every predecessor label per frame")
	vf.register(cmd)
	return cmd
}

func decodeRow(e runlog.DecodeEntry) []string {
	if e.Error != "" {
		return []string{e.Key, "-", "-", "Failed"}
	}
	return []string{e.Key, strconv.Itoa(e.Intervals), strconv.FormatFloat(e.MeanConfidence, 'f', 4, 64), "OK"}
}
