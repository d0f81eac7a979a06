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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainlint/services/lint/ast"
	"github.com/AleutianAI/chainlint/services/lint/config"
	"github.com/AleutianAI/chainlint/services/lint/engine"
	"github.com/AleutianAI/chainlint/services/lint/report"
)

type watchOptions struct {
	linterFlags
	format   string
	noColor  bool
	debounce time.Duration
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Lint, then re-lint files as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", report.FormatStylish, "Output format: "+strings.Join(report.Formats(), ", "))
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 150*time.Millisecond, "Quiet period before re-linting a burst of changes")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *watchOptions, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	formatter, err := report.NewFormatter(opts.format, report.Options{
		Color:   useColor(out, opts.noColor),
		BaseDir: workingDir(),
	})
	if err != nil {
		return runtimeFailure(err)
	}

	bundle, err := opts.build(ctx)
	if err != nil {
		return runtimeFailure(err)
	}
	defer bundle.Close()

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	run, err := bundle.linter.LintPaths(ctx, paths)
	if err != nil {
		return runtimeFailure(err)
	}
	if err := formatter.Format(out, run); err != nil {
		return runtimeFailure(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return runtimeFailure(fmt.Errorf("create watcher: %w", err))
	}
	defer watcher.Close()

	set, err := newWatchSet(bundle.linter.Config().Files, paths)
	if err != nil {
		return runtimeFailure(err)
	}
	for _, dir := range set.dirs {
		if err := watcher.Add(dir); err != nil {
			return runtimeFailure(fmt.Errorf("watch %s: %w", dir, err))
		}
	}
	slog.Info("Watching for changes", slog.Int("directories", len(set.dirs)))

	w := &watchLoop{
		linter:    bundle.linter,
		formatter: formatter,
		out:       out,
		set:       set,
		debounce:  opts.debounce,
	}
	return w.run(ctx, watcher)
}

// =============================================================================
// Watch Set
// =============================================================================

// watchSet decides which directories to watch and which changed paths to lint.
type watchSet struct {
	files    config.FilesConfig
	dirs     []string
	explicit map[string]struct{}
}

func newWatchSet(files config.FilesConfig, paths []string) (*watchSet, error) {
	s := &watchSet{files: files, explicit: make(map[string]struct{})}
	seen := make(map[string]struct{})
	addDir := func(dir string) {
		dir = filepath.Clean(dir)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			s.dirs = append(s.dirs, dir)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
		if !info.IsDir() {
			s.explicit[filepath.Clean(root)] = struct{}{}
			addDir(filepath.Dir(root))
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && files.IsExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			addDir(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
	}
	sort.Strings(s.dirs)
	return s, nil
}

// shouldLint reports whether a changed path is one the check command would lint.
func (s *watchSet) shouldLint(path string) bool {
	path = filepath.Clean(path)
	if _, ok := s.explicit[path]; ok {
		return true
	}
	if _, ok := ast.LanguageForPath(path); !ok {
		return false
	}
	return s.files.MatchesExtension(path)
}

// shouldWatchDir reports whether a newly created directory is watched.
func (s *watchSet) shouldWatchDir(path string) bool {
	return !s.files.IsExcludedDir(filepath.Base(path))
}

// =============================================================================
// Event Loop
// =============================================================================

type watchLoop struct {
	linter    *engine.Linter
	formatter report.Formatter
	out       io.Writer
	set       *watchSet
	debounce  time.Duration
}

func (w *watchLoop) run(ctx context.Context, watcher *fsnotify.Watcher) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if w.set.shouldWatchDir(ev.Name) && w.watchNewDir(watcher, ev.Name, pending) > 0 {
						timer.Reset(w.debounce)
					}
					continue
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !w.set.shouldLint(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			w.lintChanged(ctx, pending)
			clear(pending)
		}
	}
}

// watchNewDir watches a directory created after start-up, with its
// subdirectories, and queues files written into it before the watch was in
// place. It returns the number of files queued.
func (w *watchLoop) watchNewDir(watcher *fsnotify.Watcher, dir string, pending map[string]struct{}) int {
	queued := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !w.set.shouldWatchDir(path) {
				return filepath.SkipDir
			}
			if err := watcher.Add(path); err != nil {
				slog.Warn("Failed to watch new directory", slog.String("path", path), slog.String("error", err.Error()))
			}
			return nil
		}
		if d.Type().IsRegular() && w.set.shouldLint(path) {
			pending[path] = struct{}{}
			queued++
		}
		return nil
	})
	if err != nil {
		slog.Warn("Failed to scan new directory", slog.String("path", dir), slog.String("error", err.Error()))
	}
	return queued
}

// lintChanged lints every pending path and prints one report for the batch.
func (w *watchLoop) lintChanged(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	started := time.Now()
	run := &engine.RunResult{}
	for _, path := range paths {
		result, err := w.linter.LintFile(ctx, path)
		if err != nil {
			// Files deleted or renamed between the event and the lint are skipped.
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("Skipping vanished file", slog.String("path", path))
				continue
			}
			slog.Warn("File failed", slog.String("path", path), slog.String("error", err.Error()))
			result = &engine.FileResult{FilePath: path, Errors: []string{err.Error()}}
		}
		run.Files = append(run.Files, result)
		run.Counts.Add(result.Counts)
		if result.Failed() {
			run.FailedFiles++
		}
	}
	run.Duration = time.Since(started)
	if len(run.Files) == 0 {
		return
	}

	if err := w.formatter.Format(w.out, run); err != nil {
		slog.Error("Failed to write report", slog.String("error", err.Error()))
	}
}
