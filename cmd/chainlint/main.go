// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command chainlint checks JavaScript and TypeScript sources for Mongoose
// query chains that are never executed, executed when they must not be, or
// that call deprecated model methods.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainlint/services/lint/telemetry"
)

// Process exit codes.
const (
	exitOK             = 0
	exitLintFailure    = 1
	exitRuntimeFailure = 2
)

// exitError carries a process exit code out of a command. A nil err means
// the command already reported everything it had to say.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// runtimeFailure wraps err with exit code 2.
func runtimeFailure(err error) error {
	return &exitError{code: exitRuntimeFailure, err: err}
}

// rootOptions holds the persistent flags and the telemetry shutdown hook.
type rootOptions struct {
	logLevel      string
	traceExporter string
	shutdown      telemetry.ShutdownFunc
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &rootOptions{}
	root := newRootCommand(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	if opts.shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := opts.shutdown(shutdownCtx); serr != nil {
			slog.Warn("Failed to flush traces", slog.String("error", serr.Error()))
		}
		cancel()
	}

	return exitCodeFor(err, stderr)
}

// exitCodeFor maps a command error onto an exit code, printing it first.
func exitCodeFor(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "chainlint: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "chainlint: %v\n", err)
	return exitRuntimeFailure
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "chainlint",
		Short:         "Lint Mongoose query chains",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := setupLogging(cmd.ErrOrStderr(), opts.logLevel); err != nil {
				return runtimeFailure(err)
			}
			shutdown, err := telemetry.Setup(cmd.Context(), telemetry.Config{
				Exporter: opts.traceExporter,
				Writer:   cmd.ErrOrStderr(),
			})
			opts.shutdown = shutdown
			if err != nil {
				return runtimeFailure(err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.traceExporter, "trace-exporter", telemetry.ExporterNone, "Trace exporter: none, stdout, otlp")

	root.AddCommand(
		newCheckCommand(),
		newRulesCommand(),
		newWatchCommand(),
		newServeCommand(),
	)
	return root
}

// setupLogging installs a text slog handler on w at level.
func setupLogging(w io.Writer, level string) error {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: want debug, info, warn or error", s)
	}
	return lvl, nil
}
