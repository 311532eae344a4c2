package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	ansi  string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// labelWidth fits the longest preflight check name.
const labelWidth = 22

func (k statusKind) label() string {
	if style, ok := statusStyles[k]; ok {
		return style.label
	}
	return statusStyles[statusInfo].label
}

// paint wraps s in the kind's colour when colorize is set.
func (k statusKind) paint(s string, colorize bool) string {
	style, ok := statusStyles[k]
	if !colorize || !ok {
		return s
	}
	return style.ansi + s + ansiReset
}

// renderStatusLine formats "  Label:   [KIND] message" for check and run
// detail output.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	badge := "[" + kind.label() + "]"
	if message != "" {
		badge += " " + message
	}
	return kind.paint(fmt.Sprintf("  %-*s %s", labelWidth, label+":", badge), colorize)
}

// candidateKind maps a selection candidate status onto a status colour.
func candidateKind(status string) statusKind {
	switch status {
	case "best":
		return statusOK
	case "load_failed", "eval_failed":
		return statusWarn
	default:
		return statusInfo
	}
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
