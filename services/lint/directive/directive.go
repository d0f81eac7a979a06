// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package directive parses inline suppression comments.
//
// Three comment forms are recognized, in line or block comments:
//
//	// chainlint-disable-next-line [rule, ...]   suppresses the following line
//	foo() // chainlint-disable-line [rule, ...]   suppresses its own line
//	/* chainlint-disable [rule, ...] */           before the first statement: whole file
//
// Without rule names a directive covers every rule. Text after " -- " is a
// free-form reason and is ignored.
package directive

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/chainlint/services/lint/ast"
)

// Kind is the scope of a directive.
type Kind uint8

const (
	// KindNextLine suppresses the line after the comment.
	KindNextLine Kind = iota + 1

	// KindLine suppresses the comment's own line.
	KindLine

	// KindFile suppresses the whole file.
	KindFile
)

const (
	prefixNextLine = "chainlint-disable-next-line"
	prefixLine     = "chainlint-disable-line"
	prefixFile     = "chainlint-disable"
)

// String returns the directive keyword.
func (k Kind) String() string {
	switch k {
	case KindNextLine:
		return prefixNextLine
	case KindLine:
		return prefixLine
	case KindFile:
		return prefixFile
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Directive is one parsed suppression comment.
type Directive struct {
	Kind Kind

	// Rules lists the suppressed rule IDs. Empty means all rules.
	Rules []string

	// Loc is the comment's location.
	Loc ast.Location
}

// Covers reports whether the directive applies to rule.
func (d Directive) Covers(rule string) bool {
	if len(d.Rules) == 0 {
		return true
	}
	for _, r := range d.Rules {
		if r == rule {
			return true
		}
	}
	return false
}

// Parse extracts a directive from raw comment text, including its // or
// /* */ delimiters.
//
// Example:
//
//	Parse("// chainlint-disable-next-line mongoose-exec -- legacy")
//	  -> {Kind: KindNextLine, Rules: [mongoose-exec]}, true
//	Parse("// chainlint-disabled")
//	  -> {}, false
func Parse(text string) (Directive, bool) {
	body := stripDelimiters(text)

	var kind Kind
	var rest string
	switch {
	case hasKeyword(body, prefixNextLine):
		kind, rest = KindNextLine, body[len(prefixNextLine):]
	case hasKeyword(body, prefixLine):
		kind, rest = KindLine, body[len(prefixLine):]
	case hasKeyword(body, prefixFile):
		kind, rest = KindFile, body[len(prefixFile):]
	default:
		return Directive{}, false
	}

	if i := strings.Index(rest, "--"); i >= 0 {
		rest = rest[:i]
	}
	ruleIDs := strings.FieldsFunc(rest, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	return Directive{Kind: kind, Rules: ruleIDs}, true
}

func stripDelimiters(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "//"):
		text = text[2:]
	case strings.HasPrefix(text, "/*"):
		text = strings.TrimSuffix(text[2:], "*/")
		text = strings.TrimPrefix(strings.TrimSpace(text), "*")
	}
	return strings.TrimSpace(text)
}

// hasKeyword reports whether body starts with keyword as a whole word.
func hasKeyword(body, keyword string) bool {
	if !strings.HasPrefix(body, keyword) {
		return false
	}
	if len(body) == len(keyword) {
		return true
	}
	switch body[len(keyword)] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
