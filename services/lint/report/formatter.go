// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders lint results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/chainlint/services/lint/diag"
	"github.com/AleutianAI/chainlint/services/lint/engine"
)

const (
	// FormatStylish is the human-readable grouped format.
	FormatStylish = "stylish"

	// FormatJSON is the machine-readable format.
	FormatJSON = "json"
)

// Formatter writes a run result.
type Formatter interface {
	Format(w io.Writer, run *engine.RunResult) error
}

// Options configures formatters.
type Options struct {
	// Color enables ANSI styling in the stylish format.
	Color bool

	// BaseDir, when set, shortens file paths to be relative to it.
	BaseDir string
}

// Formats lists the supported formatter names.
func Formats() []string {
	return []string{FormatJSON, FormatStylish}
}

// NewFormatter returns the formatter registered under name.
func NewFormatter(name string, opts Options) (Formatter, error) {
	switch strings.ToLower(name) {
	case FormatStylish, "":
		return &StylishFormatter{opts: opts}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want one of %s)", name, strings.Join(Formats(), ", "))
}

// =============================================================================
// JSON
// =============================================================================

// JSONFormatter writes the run as indented JSON.
type JSONFormatter struct{}

// Format implements Formatter.
func (f *JSONFormatter) Format(w io.Writer, run *engine.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("json report: %w", err)
	}
	return nil
}

// =============================================================================
// Stylish
// =============================================================================

// StylishFormatter groups diagnostics by file:
//
//	src/app.js
//	  1:1  error    Expected exec(), cursor() or stream() to finalize the query.  mongoose-exec
//	  3:5  warning  Method is deprecated.                                           mongoose-deprecated
//
//	✖ 2 problems (1 error, 1 warning)
type StylishFormatter struct {
	opts Options
}

type stylishStyles struct {
	file    lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	rule    lipgloss.Style
	summary lipgloss.Style
}

// Format implements Formatter.
func (f *StylishFormatter) Format(w io.Writer, run *engine.RunResult) error {
	r := lipgloss.NewRenderer(w)
	styles := stylishStyles{
		file:    r.NewStyle().Underline(true),
		err:     r.NewStyle().Foreground(lipgloss.Color("1")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		rule:    r.NewStyle().Faint(true),
		summary: r.NewStyle().Bold(true),
	}
	paint := func(s lipgloss.Style, text string) string {
		if !f.opts.Color {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	total := diag.Counts{}
	for _, file := range run.Files {
		rows := stylishRows(file)
		if len(rows) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(paint(styles.file, f.displayPath(file.FilePath)))
		b.WriteString("\n")

		posW, sevW, msgW := 0, 0, 0
		for _, row := range rows {
			posW = max(posW, len(row.pos))
			sevW = max(sevW, len(row.severity))
			msgW = max(msgW, len(row.message))
		}
		for _, row := range rows {
			sevStyle := styles.warn
			if row.isError {
				sevStyle = styles.err
				total.Errors++
			} else {
				total.Warnings++
			}
			line := fmt.Sprintf("  %s  %s  %s  %s",
				padLeft(row.pos, posW),
				paint(sevStyle, padRight(row.severity, sevW)),
				padRight(row.message, msgW),
				paint(styles.rule, row.rule),
			)
			b.WriteString(strings.TrimRight(line, " "))
			b.WriteString("\n")
		}
	}

	if problems := total.Errors + total.Warnings; problems > 0 {
		style := styles.warn
		if total.Errors > 0 {
			style = styles.err
		}
		summary := fmt.Sprintf("✖ %d %s (%d %s, %d %s)",
			problems, plural(problems, "problem"),
			total.Errors, plural(total.Errors, "error"),
			total.Warnings, plural(total.Warnings, "warning"),
		)
		b.WriteString("\n")
		b.WriteString(paint(style.Inherit(styles.summary), summary))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type stylishRow struct {
	pos      string
	severity string
	message  string
	rule     string
	isError  bool
}

// stylishRows lists file-level errors first, then diagnostics by position.
func stylishRows(file *engine.FileResult) []stylishRow {
	var rows []stylishRow
	for _, e := range file.Errors {
		rows = append(rows, stylishRow{pos: "0:0", severity: "error", message: e, isError: true})
	}
	ds := append([]diag.Diagnostic(nil), file.Diagnostics...)
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Location.StartLine != ds[j].Location.StartLine {
			return ds[i].Location.StartLine < ds[j].Location.StartLine
		}
		return ds[i].Location.StartCol < ds[j].Location.StartCol
	})
	for _, d := range ds {
		sev := "warning"
		if d.Severity == diag.SeverityError {
			sev = "error"
		}
		rows = append(rows, stylishRow{
			pos:      fmt.Sprintf("%d:%d", d.Location.StartLine, d.Location.StartCol),
			severity: sev,
			message:  d.Message,
			rule:     d.RuleID,
			isError:  d.Severity == diag.SeverityError,
		})
	}
	return rows
}

func (f *StylishFormatter) displayPath(path string) string {
	if f.opts.BaseDir == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(f.opts.BaseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func padLeft(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return strings.Repeat(" ", w-len(s)) + s
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
