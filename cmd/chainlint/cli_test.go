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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/chainlint/services/lint/config"
	"github.com/AleutianAI/chainlint/services/lint/diag"
	"github.com/AleutianAI/chainlint/services/lint/engine"
	"github.com/AleutianAI/chainlint/services/lint/report"
)

// =============================================================================
// Helpers
// =============================================================================

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeRun(t *testing.T, out string) engine.RunResult {
	t.Helper()
	var run engine.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &run), out)
	return run
}

// =============================================================================
// check
// =============================================================================

func TestCheck_ReportsErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.js", "Model.find({});\n")
	writeFile(t, dir, "src/ok.js", "Model.find({}).exec();\n")
	writeFile(t, dir, "node_modules/dep/index.js", "Model.find({});\n")

	code, out, _ := runCLI(t, "check", "--format", "json", "--no-color", dir)
	assert.Equal(t, exitLintFailure, code)

	run := decodeRun(t, out)
	require.Len(t, run.Files, 2, "node_modules is excluded")
	assert.Equal(t, diag.Counts{Errors: 1}, run.Counts)
	assert.NotEmpty(t, run.RunID)
}

func TestCheck_CleanExitsZero(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "clean.js", "Model.find({}).exec();\nconst query = Model.find({});\n")

	code, out, _ := runCLI(t, "check", "--no-color", dir)
	assert.Equal(t, exitOK, code)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestCheck_StylishOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.js", "Model.find({});\n")

	code, out, _ := runCLI(t, "check", "--no-color", path)
	assert.Equal(t, exitLintFailure, code)
	assert.Contains(t, out, "1:1")
	assert.Contains(t, out, "mongoose-exec")
	assert.Contains(t, out, "1 problem (1 error, 0 warnings)")
}

func TestCheck_MaxWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "Model.count({}).exec();\n")

	code, _, _ := runCLI(t, "check", "--no-color", dir)
	assert.Equal(t, exitOK, code, "warnings alone pass by default")

	code, _, _ = runCLI(t, "check", "--no-color", "--max-warnings", "0", dir)
	assert.Equal(t, exitLintFailure, code)

	code, _, _ = runCLI(t, "check", "--no-color", "--max-warnings", "1", dir)
	assert.Equal(t, exitOK, code)
}

func TestCheck_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "Model.find({});\n")
	cfgPath := writeFile(t, dir, "lint.yaml", "rules:\n  mongoose-exec:\n    severity: warn\n")

	code, out, _ := runCLI(t, "check", "--format", "json", "--config", cfgPath, filepath.Join(dir, "a.js"))
	assert.Equal(t, exitOK, code)
	assert.Equal(t, diag.Counts{Warnings: 1}, decodeRun(t, out).Counts)
}

func TestCheck_Diff(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.js", "Model.find({});\nModel.update({});\n")
	diffPath := writeFile(t, dir, "change.diff", `--- a/src/a.js
+++ b/src/a.js
@@ -1,1 +1,2 @@
 Model.find({});
+Model.update({});
`)

	code, out, _ := runCLI(t, "check", "--format", "json", "--diff", diffPath, filepath.Join(dir, "src"))
	assert.Equal(t, exitLintFailure, code)

	run := decodeRun(t, out)
	diags := run.Diagnostics()
	require.NotEmpty(t, diags)
	for _, d := range diags {
		assert.Equal(t, 2, d.Location.StartLine, "only added lines are reported")
	}
}

func TestCheck_CacheDir(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.js", "Model.find({});\n")
	cacheDir := filepath.Join(t.TempDir(), "cache")

	_, out, _ := runCLI(t, "check", "--format", "json", "--cache-dir", cacheDir, src)
	first := decodeRun(t, out)
	require.Len(t, first.Files, 1)
	assert.False(t, first.Files[0].Cached)

	_, out, _ = runCLI(t, "check", "--format", "json", "--cache-dir", cacheDir, src)
	second := decodeRun(t, out)
	require.Len(t, second.Files, 1)
	assert.True(t, second.Files[0].Cached)
	assert.Equal(t, first.Counts, second.Counts)

	_, out, _ = runCLI(t, "check", "--format", "json", "--cache-dir", cacheDir, "--clear-cache", src)
	assert.False(t, decodeRun(t, out).Files[0].Cached)
}

func TestCheck_RuntimeFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js", "Model.find({}).exec();\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown format", []string{"check", "--format", "xml", dir}, "unknown format"},
		{"missing path", []string{"check", filepath.Join(dir, "nope")}, "nope"},
		{"clear cache without dir", []string{"check", "--clear-cache", dir}, "--cache-dir"},
		{"bad log level", []string{"--log-level", "loud", "check", dir}, "--log-level"},
		{"bad trace exporter", []string{"--trace-exporter", "zipkin", "check", dir}, "zipkin"},
		{"missing config", []string{"check", "--config", filepath.Join(dir, "none.yaml"), dir}, "none.yaml"},
		{"missing diff", []string{"check", "--diff", filepath.Join(dir, "none.diff"), dir}, "read diff"},
		{"unknown flag", []string{"check", "--bogus"}, "bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, exitRuntimeFailure, code)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestCheckExitCode(t *testing.T) {
	tests := []struct {
		name        string
		run         engine.RunResult
		maxWarnings int
		want        int
	}{
		{"clean", engine.RunResult{}, -1, exitOK},
		{"errors", engine.RunResult{Counts: diag.Counts{Errors: 1}}, -1, exitLintFailure},
		{"warnings unlimited", engine.RunResult{Counts: diag.Counts{Warnings: 9}}, -1, exitOK},
		{"warnings at limit", engine.RunResult{Counts: diag.Counts{Warnings: 2}}, 2, exitOK},
		{"warnings over limit", engine.RunResult{Counts: diag.Counts{Warnings: 3}}, 2, exitLintFailure},
		{"failed file", engine.RunResult{FailedFiles: 1, Counts: diag.Counts{Errors: 1}}, -1, exitRuntimeFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkExitCode(&tt.run, tt.maxWarnings))
		})
	}
}

func TestUseColor(t *testing.T) {
	assert.False(t, useColor(&bytes.Buffer{}, false), "buffers are not terminals")
	assert.False(t, useColor(os.Stdout, true), "--no-color wins")

	t.Setenv("NO_COLOR", "1")
	assert.False(t, useColor(os.Stdout, false))
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLogLevel("verbose")
	assert.Error(t, err)
}

// =============================================================================
// rules
// =============================================================================

func TestRules_Table(t *testing.T) {
	code, out, _ := runCLI(t, "rules")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "mongoose-exec")
	assert.Contains(t, out, "mongoose-deprecated")
	assert.Contains(t, out, "expected_cursor")
	assert.Contains(t, out, "error")
}

func TestRules_JSON(t *testing.T) {
	code, out, _ := runCLI(t, "rules", "--json")
	require.Equal(t, exitOK, code)

	var infos []engine.RuleInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "mongoose-deprecated", infos[0].Name)
	assert.Equal(t, diag.SeverityWarn, infos[0].Severity)
	assert.Equal(t, "mongoose-exec", infos[1].Name)
}

// =============================================================================
// watch
// =============================================================================

func TestWatchSet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.js", "")
	writeFile(t, dir, "node_modules/x/index.js", "")
	explicit := writeFile(t, dir, "scripts/tool.es6.js", "")

	cfg, err := config.DefaultConfig(context.Background())
	require.NoError(t, err)

	set, err := newWatchSet(cfg.Files, []string{dir, explicit})
	require.NoError(t, err)

	assert.Contains(t, set.dirs, filepath.Join(dir, "src"))
	assert.Contains(t, set.dirs, filepath.Join(dir, "scripts"))
	assert.NotContains(t, set.dirs, filepath.Join(dir, "node_modules"))

	assert.True(t, set.shouldLint(filepath.Join(dir, "src", "b.ts")))
	assert.True(t, set.shouldLint(explicit))
	assert.False(t, set.shouldLint(filepath.Join(dir, "README.md")))

	assert.True(t, set.shouldWatchDir(filepath.Join(dir, "lib")))
	assert.False(t, set.shouldWatchDir(filepath.Join(dir, "dist")))
}

func TestWatchLoop_LintChanged(t *testing.T) {
	dir := t.TempDir()
	changed := writeFile(t, dir, "a.js", "Model.find({});\n")

	linter, err := engine.NewLinter(nil)
	require.NoError(t, err)
	formatter, err := report.NewFormatter(report.FormatJSON, report.Options{})
	require.NoError(t, err)

	var out bytes.Buffer
	loop := &watchLoop{linter: linter, formatter: formatter, out: &out, debounce: time.Millisecond}
	loop.lintChanged(context.Background(), map[string]struct{}{
		changed:                       {},
		filepath.Join(dir, "gone.js"): {},
	})

	run := decodeRun(t, out.String())
	require.Len(t, run.Files, 1)
	assert.Equal(t, diag.Counts{Errors: 1}, run.Counts)
}

func TestWatchLoop_LintChangedReportsUnlintableFiles(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "big.js", "Model.find({}).exec(); // over the limit\n")
	binary := writeFile(t, dir, "bin.js", "\xff\xfe")
	ok := writeFile(t, dir, "ok.js", "1;\n")

	cfg, err := config.LoadConfig(context.Background(), []byte("files:\n  max_file_size: 16\n"))
	require.NoError(t, err)
	linter, err := engine.NewLinter(cfg)
	require.NoError(t, err)
	formatter, err := report.NewFormatter(report.FormatJSON, report.Options{})
	require.NoError(t, err)

	var out bytes.Buffer
	loop := &watchLoop{linter: linter, formatter: formatter, out: &out, debounce: time.Millisecond}
	loop.lintChanged(context.Background(), map[string]struct{}{
		big:    {},
		binary: {},
		ok:     {},
	})

	run := decodeRun(t, out.String())
	require.Len(t, run.Files, 3)
	assert.Equal(t, 2, run.FailedFiles)

	byPath := make(map[string]*engine.FileResult)
	for _, f := range run.Files {
		byPath[f.FilePath] = f
	}
	require.Contains(t, byPath, big)
	assert.Contains(t, strings.Join(byPath[big].Errors, " "), "exceeds maximum size")
	require.Contains(t, byPath, binary)
	assert.Contains(t, strings.Join(byPath[binary].Errors, " "), "UTF-8")
	require.Contains(t, byPath, ok)
	assert.Empty(t, byPath[ok].Errors)
}

func TestWatchLoop_WatchNewDirQueuesExistingFiles(t *testing.T) {
	root := t.TempDir()
	cfg, err := config.DefaultConfig(context.Background())
	require.NoError(t, err)
	set, err := newWatchSet(cfg.Files, []string{root})
	require.NoError(t, err)

	// Files land before the new directory is watched.
	newDir := filepath.Join(root, "feature")
	first := writeFile(t, newDir, "a.js", "Model.find({});\n")
	nested := writeFile(t, newDir, "deep/b.ts", "Model.find({});\n")
	writeFile(t, newDir, "notes.md", "# notes\n")
	writeFile(t, newDir, "node_modules/dep/index.js", "Model.find({});\n")

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	loop := &watchLoop{set: set, debounce: time.Millisecond}
	pending := make(map[string]struct{})
	assert.Equal(t, 2, loop.watchNewDir(watcher, newDir, pending))
	assert.Equal(t, map[string]struct{}{first: {}, nested: {}}, pending)

	watched := watcher.WatchList()
	assert.Contains(t, watched, newDir)
	assert.Contains(t, watched, filepath.Join(newDir, "deep"))
	assert.NotContains(t, watched, filepath.Join(newDir, "node_modules"))
}

func TestWatchLoop_RelintsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.js", "Model.find({}).exec();\n")

	cfg, err := config.DefaultConfig(context.Background())
	require.NoError(t, err)
	linter, err := engine.NewLinter(cfg)
	require.NoError(t, err)
	formatter, err := report.NewFormatter(report.FormatJSON, report.Options{})
	require.NoError(t, err)
	set, err := newWatchSet(cfg.Files, []string{dir})
	require.NoError(t, err)

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()
	require.NoError(t, watcher.Add(dir))

	out := &syncBuffer{}
	loop := &watchLoop{linter: linter, formatter: formatter, out: out, set: set, debounce: 20 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.run(ctx, watcher) }()

	require.NoError(t, os.WriteFile(path, []byte("Model.find({});\n"), 0o600))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "mongoose-exec")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}
