// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainlint/services/lint/engine"
	"github.com/AleutianAI/chainlint/services/lint/report"
)

type checkOptions struct {
	linterFlags
	format      string
	noColor     bool
	diffPath    string
	clearCache  bool
	maxWarnings int
}

func newCheckCommand() *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Lint files and directories",
		Long: `Lint JavaScript and TypeScript files. Directories are walked recursively,
skipping the configured exclude_dirs. With no paths the working directory is linted.

Exit status is 1 when any error is reported or warnings exceed --max-warnings,
and 2 when linting could not run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", report.FormatStylish, "Output format: "+strings.Join(report.Formats(), ", "))
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.diffPath, "diff", "", "Only report lines added in this unified diff (- for stdin)")
	cmd.Flags().BoolVar(&opts.clearCache, "clear-cache", false, "Drop cached results before linting (requires --cache-dir)")
	cmd.Flags().IntVar(&opts.maxWarnings, "max-warnings", -1, "Fail when warnings exceed this number (-1 disables)")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *checkOptions, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.clearCache && opts.cacheDir == "" {
		return runtimeFailure(fmt.Errorf("--clear-cache requires --cache-dir"))
	}

	formatter, err := report.NewFormatter(opts.format, report.Options{
		Color:   useColor(out, opts.noColor),
		BaseDir: workingDir(),
	})
	if err != nil {
		return runtimeFailure(err)
	}

	var filter *report.DiffFilter
	if opts.diffPath != "" {
		data, err := readDiff(cmd.InOrStdin(), opts.diffPath)
		if err != nil {
			return runtimeFailure(err)
		}
		if filter, err = report.ParseDiff(data); err != nil {
			return runtimeFailure(err)
		}
	}

	bundle, err := opts.build(ctx)
	if err != nil {
		return runtimeFailure(err)
	}
	defer bundle.Close()

	if opts.clearCache {
		if err := bundle.cache.Purge(ctx); err != nil {
			return runtimeFailure(err)
		}
		slog.Info("Result cache cleared", slog.String("dir", opts.cacheDir))
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}
	run, err := bundle.linter.LintPaths(ctx, paths)
	if err != nil {
		return runtimeFailure(err)
	}
	if filter != nil {
		filter.Apply(run)
	}

	if err := formatter.Format(out, run); err != nil {
		return runtimeFailure(fmt.Errorf("write report: %w", err))
	}

	if code := checkExitCode(run, opts.maxWarnings); code != exitOK {
		return &exitError{code: code}
	}
	return nil
}

// checkExitCode decides the exit status of a finished run.
func checkExitCode(run *engine.RunResult, maxWarnings int) int {
	switch {
	case run.FailedFiles > 0:
		return exitRuntimeFailure
	case run.Counts.Errors > 0:
		return exitLintFailure
	case maxWarnings >= 0 && run.Counts.Warnings > maxWarnings:
		return exitLintFailure
	default:
		return exitOK
	}
}

// useColor reports whether w is a terminal that should receive ANSI styling.
func useColor(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func readDiff(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read diff from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read diff: %w", err)
	}
	return data, nil
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
