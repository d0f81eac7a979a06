// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/chainlint/services/lint/ast"
	"github.com/AleutianAI/chainlint/services/lint/diag"
)

// RunResult is the outcome of linting a set of paths.
type RunResult struct {
	RunID    string        `json:"run_id"`
	Files    []*FileResult `json:"files"`
	Counts   diag.Counts   `json:"counts"`
	Duration time.Duration `json:"duration_ns"`

	// FailedFiles counts files that could not be read or parsed.
	FailedFiles int `json:"failed_files"`
}

// Diagnostics flattens the diagnostics of every file, in file order.
func (r *RunResult) Diagnostics() []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range r.Files {
		out = append(out, f.Diagnostics...)
	}
	return out
}

// =============================================================================
// Discovery
// =============================================================================

// Discover expands paths into the sorted, deduplicated list of files to lint.
//
// Description:
//
//	Directories are walked recursively, skipping configured excluded
//	directories and keeping files with a configured extension. A path
//	naming a file directly is kept when its language is supported,
//	whatever the extension list says.
func (l *Linter) Discover(ctx context.Context, paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}
		if !info.IsDir() {
			if _, ok := ast.LanguageForPath(root); ok {
				add(root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && l.cfg.Files.IsExcludedDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if _, ok := ast.LanguageForPath(path); ok && l.cfg.Files.MatchesExtension(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// Running
// =============================================================================

// LintFile reads and lints one file.
func (l *Linter) LintFile(ctx context.Context, path string) (*FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", path, err)
	}
	if info.Size() > l.cfg.Files.MaxFileSize {
		return nil, fmt.Errorf("lint %s: %w", path, ast.ErrFileTooLarge)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", path, err)
	}
	return l.LintSource(ctx, path, content)
}

// LintPaths discovers and lints files in parallel.
//
// Description:
//
//	Files are linted with at most the configured concurrency. A file that
//	cannot be read or parsed is recorded as a failed FileResult and does
//	not stop the run. Results are ordered by path regardless of completion
//	order.
//
// Outputs:
//
//	*RunResult - Per-file results and totals.
//	error      - Discovery failures or context cancellation.
func (l *Linter) LintPaths(ctx context.Context, paths []string) (*RunResult, error) {
	ctx, span := tracer.Start(ctx, "Linter.LintPaths")
	defer span.End()
	started := time.Now()

	run := &RunResult{RunID: uuid.NewString()}
	span.SetAttributes(attribute.String("run.id", run.RunID))

	files, err := l.Discover(ctx, paths)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		return nil, err
	}

	results := make([]*FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := l.LintFile(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				l.logger.Warn("file failed",
					slog.String("run_id", run.RunID),
					slog.String("file", path),
					slog.String("error", err.Error()),
				)
				res = &FileResult{FilePath: path, Errors: []string{err.Error()}}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run canceled")
		return nil, fmt.Errorf("lint run %s: %w", run.RunID, err)
	}

	run.Files = results
	for _, res := range results {
		run.Counts.Add(res.Counts)
		if res.Failed() {
			run.FailedFiles++
		}
	}
	run.Duration = time.Since(started)

	span.SetAttributes(
		attribute.Int("files", len(files)),
		attribute.Int("errors", run.Counts.Errors),
		attribute.Int("warnings", run.Counts.Warnings),
		attribute.Int("failed_files", run.FailedFiles),
	)
	l.logger.Info("lint run complete",
		slog.String("run_id", run.RunID),
		slog.Int("files", len(files)),
		slog.Int("errors", run.Counts.Errors),
		slog.Int("warnings", run.Counts.Warnings),
		slog.Int("failed_files", run.FailedFiles),
		slog.Duration("duration", run.Duration),
	)
	return run, nil
}
