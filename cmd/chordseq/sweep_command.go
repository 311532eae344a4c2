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

type sweepRowJSON struct {
	Penalty        float64 `json:"penalty"`
	Intervals      int     `json:"intervals"`
	MeanConfidence float64 `json:"mean_confidence"`
	Failed         bool    `json:"failed"`
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var (
		penaltiesSpec string
		outDir        string
		jsonOut       bool
		exhaustive    bool
		vf            vocabFlags
	)

	cmd := &cobra.Command{
		Use:   "sweep STASH KEY",
		Short: "Decode one posterior at several penalties and compare the results",
		Long: `Decodes the posterior stored under KEY once per penalty, in parallel, and
prints the interval count and mean confidence of each result. Penalties are a
min:max:step range or a comma separated list. Requires batch mode.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := (sweep.Options{BatchMode: cfg.Decode.BatchMode}).Require("decode_sweep"); err != nil {
				return err
			}
			if !cmd.Flags().Changed("penalties") {
				penaltiesSpec = cfg.Decode.Penalties
			}
			penalties, err := sweep.ParsePenalties(penaltiesSpec)
			if err != nil {
				return err
			}
			stashPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			key := args[1]

			v, err := resolveVocabulary(cfg, vf.size, vf.file)
			if err != nil {
				return err
			}
			store, err := openStash(cmd.Context(), stashPath)
			if err != nil {
				return err
			}
			defer store.Close()
			entities, err := loadEntities(cmd.Context(), store, []string{key})
			if err != nil {
				return err
			}

			session, err := ctx.startRun(cmd.Context(), runlog.KindSweep)
			if err != nil {
				return err
			}
			opts := sweep.Options{
				Workers:   cfg.Decode.Workers,
				BatchMode: cfg.Decode.BatchMode,
				Decode:    decode.Options{Exhaustive: exhaustive || cfg.Decode.Exhaustive},
				Logger:    session.logger,
			}
			annotations, sweepErr := sweep.DecodeSweep(session.ctx, entities[key], penalties, v, opts)
			rows := sweep.Summarise(penalties, annotations)

			runErr := sweepErr
			if outDir != "" && annotations != nil {
				if err := writeSweepAnnotations(outDir, key, annotations); err != nil && runErr == nil {
					runErr = err
				}
			}
			if annotations != nil {
				entries := make([]runlog.DecodeEntry, 0, len(rows))
				for _, r := range rows {
					entry := runlog.DecodeEntry{Key: key, Penalty: r.Penalty, Intervals: r.Intervals, MeanConfidence: r.MeanConfidence}
					if r.Failed {
						entry.Error = "decode failed"
					}
					entries = append(entries, entry)
				}
				session.recordDecodes(entries)
				if err := renderSweep(cmd, key, rows, jsonOut); err != nil && runErr == nil {
					runErr = err
				}
			}
			return session.finish(runlog.Outcome{Output: outDir}, runErr)
		},
	}

	cmd.Flags().StringVar(&penaltiesSpec, "penalties", "", "Penalty range min:max:step or list a,b,c (default from config)")
	cmd.Flags().StringVar(&outDir, "out", "", "Also write one annotation per penalty into this directory")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the summary as JSON")
	cmd.Flags().BoolVar(&exhaustive, "exhaustive", false, "Compare every predecessor label per frame")
	vf.register(cmd)
	return cmd
}

func writeSweepAnnotations(dir, key string, annotations []*decode.Annotation) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, ann := range annotations {
		if ann == nil {
			continue
		}
		path := filepath.Join(dir, sweepFileName(key, ann.Penalty))
		if err := ann.WriteFile(path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func renderSweep(cmd *cobra.Command, key string, rows []sweep.Row, jsonOut bool) error {
	if jsonOut {
		out := make([]sweepRowJSON, len(rows))
		for i, r := range rows {
			out[i] = sweepRowJSON(r)
		}
		return writeJSON(cmd, out)
	}
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		if r.Failed {
			table = append(table, []string{formatPenalty(r.Penalty), "-", "-", "Failed"})
			continue
		}
		table = append(table, []string{
			formatPenalty(r.Penalty),
			strconv.Itoa(r.Intervals),
			strconv.FormatFloat(r.MeanConfidence, 'f', 4, 64),
			"OK",
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), tableSpec{
		Title:   "Penalty sweep: " + key,
		Headers: []string{"Penalty", "Intervals", "Mean confidence", "Status"},
		Rows:    table,
		Aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignLeft},
	}.render())
	return nil
}
