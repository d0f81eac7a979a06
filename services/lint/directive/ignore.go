// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package directive

import (
	"sort"

	"github.com/AleutianAI/chainlint/services/lint/ast"
)

type ignoreEntry struct {
	directive Directive
	used      bool
}

// IgnoreMap resolves which diagnostics a file's directives suppress and
// tracks which directives were used.
//
// Thread Safety: Not safe for concurrent use. Build one per file.
type IgnoreMap struct {
	file    []*ignoreEntry
	byLine  map[int][]*ignoreEntry
	entries []*ignoreEntry
}

// BuildIgnoreMap scans a tree's comments for directives.
//
// Description:
//
//	Line directives are keyed by the line they suppress. A
//	chainlint-disable comment applies to the whole file only when it ends
//	before the first top-level statement begins; one placed later never
//	suppresses anything and is reported by Unused.
func BuildIgnoreMap(tree *ast.Tree) *IgnoreMap {
	m := &IgnoreMap{byLine: make(map[int][]*ignoreEntry)}
	if tree == nil {
		return m
	}

	first, hasStatement := firstStatement(tree)
	for _, c := range tree.Comments {
		d, ok := Parse(c.Text)
		if !ok {
			continue
		}
		d.Loc = c.Loc
		entry := &ignoreEntry{directive: d}
		m.entries = append(m.entries, entry)

		switch d.Kind {
		case KindNextLine:
			m.byLine[c.Loc.EndLine+1] = append(m.byLine[c.Loc.EndLine+1], entry)
		case KindLine:
			m.byLine[c.Loc.StartLine] = append(m.byLine[c.Loc.StartLine], entry)
		case KindFile:
			if !hasStatement || before(c.Loc, first) {
				m.file = append(m.file, entry)
			}
		}
	}
	return m
}

// firstStatement returns the location of the first child of the root.
func firstStatement(tree *ast.Tree) (ast.Location, bool) {
	for i := 0; i < tree.Len(); i++ {
		n := tree.Node(ast.NodeID(i))
		if n.Parent == tree.Root {
			return n.Loc, true
		}
	}
	return ast.Location{}, false
}

func before(a, b ast.Location) bool {
	if a.EndLine != b.StartLine {
		return a.EndLine < b.StartLine
	}
	return a.EndCol <= b.StartCol
}

// ShouldIgnore reports whether a diagnostic for rule on line is suppressed,
// and marks the suppressing directive as used.
func (m *IgnoreMap) ShouldIgnore(rule string, line int) bool {
	for _, entry := range m.file {
		if entry.directive.Covers(rule) {
			entry.used = true
			return true
		}
	}
	for _, entry := range m.byLine[line] {
		if entry.directive.Covers(rule) {
			entry.used = true
			return true
		}
	}
	return false
}

// Len returns the number of directives found.
func (m *IgnoreMap) Len() int {
	return len(m.entries)
}

// Unused returns the directives that suppressed nothing, in source order.
func (m *IgnoreMap) Unused() []Directive {
	var out []Directive
	for _, entry := range m.entries {
		if !entry.used {
			out = append(out, entry.directive)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Loc, out[j].Loc
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.StartCol < b.StartCol
	})
	return out
}
