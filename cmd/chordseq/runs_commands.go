package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"chordseq/internal/logging"
	"chordseq/internal/runlog"
)

type runJSON struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Status     string          `json:"status"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at,omitempty"`
	BestPath   string          `json:"best_path,omitempty"`
	BestLoss   *float64        `json:"best_loss,omitempty"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Candidates []candidateJSON `json:"candidates,omitempty"`
	Decodes    []decodeJSON    `json:"decodes,omitempty"`
}

type candidateJSON struct {
	Position int      `json:"position"`
	Path     string   `json:"path"`
	Status   string   `json:"status"`
	Loss     *float64 `json:"loss,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type decodeJSON struct {
	Key            string  `json:"key"`
	Penalty        float64 `json:"penalty"`
	Intervals      int     `json:"intervals"`
	MeanConfidence float64 `json:"mean_confidence"`
	Error          string  `json:"error,omitempty"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run ledger",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsLogCommand(ctx))
	return runsCmd
}

func (c *commandContext) openLedger(cmd *cobra.Command) (*runlog.Ledger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return runlog.Open(cmd.Context(), cfg.LedgerPath())
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()
			runs, err := ledger.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					shortID(r.ID),
					string(r.Kind),
					statusLabel(string(r.Status)),
					formatTimestamp(r.StartedAt),
					formatDuration(r.Duration()),
					bestSummary(r),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Kind", "Status", "Started", "Duration", "Best"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list; 0 lists all")
	return cmd
}

func bestSummary(r runlog.Run) string {
	if r.BestPath == "" {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", filepath.Base(r.BestPath), formatLoss(r.BestLoss))
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one run with its candidates or decodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}
			defer ledger.Close()
			detail, err := ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, toRunJSON(detail))
			}
			renderRunDetail(cmd, detail)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run as JSON")
	return cmd
}

func toRunJSON(d *runlog.Detail) runJSON {
	r := d.Run
	out := runJSON{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Status:    string(r.Status),
		StartedAt: r.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		BestPath:  r.BestPath,
		BestLoss:  floatPtr(r.BestLoss),
		Output:    r.Output,
		Error:     r.Error,
	}
	if r.FinishedAt != nil {
		out.FinishedAt = r.FinishedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	for _, c := range d.Candidates {
		out.Candidates = append(out.Candidates, candidateJSON{
			Position: c.Position, Path: c.Path, Status: c.Status, Loss: floatPtr(c.Loss), Error: c.Error,
		})
	}
	for _, e := range d.Decodes {
		out.Decodes = append(out.Decodes, decodeJSON(e))
	}
	return out
}

func renderRunDetail(cmd *cobra.Command, d *runlog.Detail) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	r := d.Run

	kind := statusOK
	switch r.Status {
	case runlog.StatusFailed:
		kind = statusError
	case runlog.StatusRunning:
		kind = statusInfo
	}
	fmt.Fprintln(out, renderStatusLine("Run", kind, r.ID, colorize))
	fmt.Fprintln(out, renderStatusLine("Kind", statusInfo, string(r.Kind), colorize))
	fmt.Fprintln(out, renderStatusLine("Status", kind, statusLabel(string(r.Status)), colorize))
	fmt.Fprintln(out, renderStatusLine("Started", statusInfo, formatTimestamp(r.StartedAt), colorize))
	if r.FinishedAt != nil {
		fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatDuration(r.Duration()), colorize))
	}
	if r.BestPath != "" {
		fmt.Fprintln(out, renderStatusLine("Best", statusOK, bestSummary(r), colorize))
	}
	if r.Output != "" {
		fmt.Fprintln(out, renderStatusLine("Output", statusInfo, r.Output, colorize))
	}
	if r.Error != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, r.Error, colorize))
	}

	if len(d.Candidates) > 0 {
		rows := make([][]string, 0, len(d.Candidates))
		for _, c := range d.Candidates {
			rows = append(rows, []string{strconv.Itoa(c.Position + 1), filepath.Base(c.Path), statusLabel(c.Status), formatLoss(c.Loss), c.Error})
		}
		fmt.Fprintln(out, tableSpec{
			Title:   "Candidates",
			Headers: []string{"#", "Checkpoint", "Status", "Loss", "Error"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
		}.render())
	}
	if len(d.Decodes) > 0 {
		rows := make([][]string, 0, len(d.Decodes))
		for _, e := range d.Decodes {
			row := decodeRow(e)
			rows = append(rows, []string{row[0], formatPenalty(e.Penalty), row[1], row[2], row[3]})
		}
		fmt.Fprintln(out, tableSpec{
			Title:   "Decodes",
			Headers: []string{"Key", "Penalty", "Intervals", "Mean confidence", "Status"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		}.render())
	}
}

func newRunsLogCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "log ID",
		Short: "Print a run's diagnostic log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, err := ctx.openLedger(cmd)
			if err != nil {
				return err
			}
			detail, err := ledger.Get(cmd.Context(), args[0])
			ledger.Close()
			if err != nil {
				return err
			}

			path := logging.RunLogPath(cfg.RunLogDir(), detail.Run.ID)
			if _, err := statFile(path); err != nil {
				return fmt.Errorf("run log: %w", err)
			}
			tail, offset, err := logging.TailLines(path, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logging.Follow(cmd.Context(), path, offset, 250*time.Millisecond, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Trailing lines to print; 0 prints the whole log")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}
