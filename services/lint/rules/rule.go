// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules implements the chain policy rules applied to call expressions.
//
// Each rule inspects one call node of an ast.Tree and yields at most one
// Finding. Rules are pure functions of the tree: they never mutate it and
// keep no state between calls, so one rule instance can serve any number of
// goroutines.
package rules

import (
	"errors"
	"unicode"
	"unicode/utf8"

	"github.com/AleutianAI/chainlint/services/lint/ast"
)

// ErrUnknownRule is returned by Registry.Build for an unregistered name.
var ErrUnknownRule = errors.New("unknown rule")

// MessageID identifies one diagnostic a rule can produce.
type MessageID string

const (
	MessageExpected        MessageID = "expected"
	MessageExpectedCursor  MessageID = "expected_cursor"
	MessageNotNeeded       MessageID = "not_needed"
	MessageNotNeededCursor MessageID = "not_needed_cursor"
	MessageDeprecated      MessageID = "deprecated"
)

// Finding is a rule decision for one call node.
type Finding struct {
	RuleID    string
	MessageID MessageID
	Node      ast.NodeID
}

// Meta describes a rule for registries, reporters and the rules command.
type Meta struct {
	Description string
	DocsURL     string
	Messages    map[MessageID]string
}

// Rule is a single call-node check.
type Rule interface {
	// Name returns the rule ID used in configuration and diagnostics.
	Name() string

	// Meta returns the rule's description and message templates.
	Meta() Meta

	// Check inspects one call node. A nil Finding means the call passes.
	// The error is non-nil only when the tree violates the parser's
	// structural contract around call.
	Check(tree *ast.Tree, call ast.NodeID) (*Finding, error)
}

// IsModelLike reports whether a caller name looks like a model: non-empty,
// not the lodash placeholder "_", and with a first rune that upper-casing
// leaves unchanged.
func IsModelLike(name string) bool {
	if name == "" || name == "_" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.ToUpper(r) == r
}

// modelMethod returns the method name of a call made directly on a
// model-like identifier.
func modelMethod(tree *ast.Tree, call ast.NodeID) (string, bool) {
	caller, ok := tree.CallerName(call)
	if !ok || !IsModelLike(caller) {
		return "", false
	}
	return tree.MethodName(call)
}
