// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/chainlint/services/lint/diag"
	"github.com/AleutianAI/chainlint/services/lint/engine"
)

// DiffFilter keeps only diagnostics on lines a unified diff adds or changes.
type DiffFilter struct {
	// changed maps a slash-separated new-file path to its added line numbers.
	changed map[string]map[int]struct{}
}

// ParseDiff builds a DiffFilter from unified diff text, such as the output
// of `git diff`. Deleted files contribute nothing.
func ParseDiff(data []byte) (*DiffFilter, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	f := &DiffFilter{changed: make(map[string]map[int]struct{})}
	for _, fd := range fileDiffs {
		name := diffPath(fd.NewName)
		if name == "" {
			continue
		}
		lines := f.changed[name]
		if lines == nil {
			lines = make(map[int]struct{})
			f.changed[name] = lines
		}
		for _, h := range fd.Hunks {
			addHunkLines(lines, h)
		}
	}
	return f, nil
}

func diffPath(name string) string {
	if name == "" || name == "/dev/null" {
		return ""
	}
	if i := strings.IndexAny(name, "\t"); i >= 0 {
		name = name[:i]
	}
	for _, prefix := range []string{"b/", "a/"} {
		if strings.HasPrefix(name, prefix) {
			name = name[len(prefix):]
			break
		}
	}
	return filepath.ToSlash(filepath.Clean(name))
}

func addHunkLines(lines map[int]struct{}, h *diff.Hunk) {
	line := int(h.NewStartLine)
	body := bytes.TrimSuffix(h.Body, []byte("\n"))
	for _, raw := range bytes.Split(body, []byte("\n")) {
		if len(raw) == 0 {
			line++
			continue
		}
		switch raw[0] {
		case '+':
			lines[line] = struct{}{}
			line++
		case '-', '\\':
		default:
			line++
		}
	}
}

// Files returns the number of files with changes.
func (f *DiffFilter) Files() int {
	return len(f.changed)
}

// Contains reports whether line of path was added or changed. Paths match
// when one is a path-component suffix of the other, so absolute diagnostic
// paths match repository-relative diff paths.
func (f *DiffFilter) Contains(path string, line int) bool {
	lines := f.linesFor(path)
	if lines == nil {
		return false
	}
	_, ok := lines[line]
	return ok
}

func (f *DiffFilter) linesFor(path string) map[int]struct{} {
	p := filepath.ToSlash(filepath.Clean(path))
	if lines, ok := f.changed[p]; ok {
		return lines
	}
	for name, lines := range f.changed {
		if strings.HasSuffix(p, "/"+name) || strings.HasSuffix(name, "/"+p) {
			return lines
		}
	}
	return nil
}

// Apply drops diagnostics outside the diff and recomputes counts in place.
// Files not in the diff lose all diagnostics; file-level errors are kept.
func (f *DiffFilter) Apply(run *engine.RunResult) {
	run.Counts = diag.Counts{}
	for _, file := range run.Files {
		if file.Diagnostics == nil {
			continue
		}
		kept := make([]diag.Diagnostic, 0, len(file.Diagnostics))
		for _, d := range file.Diagnostics {
			if f.Contains(d.FilePath, d.Location.StartLine) {
				kept = append(kept, d)
			}
		}
		file.Diagnostics = kept
		file.Counts = diag.Count(kept)
		run.Counts.Add(file.Counts)
	}
}
