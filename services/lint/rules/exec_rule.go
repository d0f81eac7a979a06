// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"

	"github.com/AleutianAI/chainlint/services/lint/ast"
)

// ExecRuleName is the rule ID of ExecRule.
const ExecRuleName = "mongoose-exec"

// ExecRule enforces terminator policy on model query chains.
//
// Description:
//
//	For a call made directly on a model-like identifier whose method is in
//	the must-terminate or must-not-terminate set, ExecRule walks the chain
//	to its terminal node and reports when the terminal contradicts the
//	method's policy:
//
//	  expected          must-terminate chain ends without exec/cursor/stream
//	  expected_cursor   result bound to a cursor/stream name, no cursor terminal
//	  not_needed        must-not-terminate chain ends in exec
//	  not_needed_cursor cursor/stream terminal on a method that cannot stream
//
//	A trailing callback argument exempts the call entirely. Binding the
//	result to a query/find name exempts it from `expected`.
//
// Thread Safety: Immutable; safe for concurrent use.
type ExecRule struct {
	policy  *Policy
	options Options
}

// NewExecRule creates an ExecRule. A nil policy uses DefaultPolicy.
func NewExecRule(policy *Policy, options Options) *ExecRule {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &ExecRule{policy: policy, options: options}
}

// Name implements Rule.
func (r *ExecRule) Name() string {
	return ExecRuleName
}

// Meta implements Rule.
func (r *ExecRule) Meta() Meta {
	return Meta{
		Description: "require query chains on models to end in exec(), cursor() or stream() where needed",
		DocsURL:     "https://mongoosejs.com/docs/queries.html",
		Messages: map[MessageID]string{
			MessageExpected:        "Expected exec(), cursor() or stream() to finalize the query.",
			MessageExpectedCursor:  "Expected cursor() or stream() for a result bound to a cursor.",
			MessageNotNeeded:       "exec() is not needed; this call already returns a final value.",
			MessageNotNeededCursor: "cursor() and stream() are not supported by this call.",
		},
	}
}

// Options returns the options the rule was built with.
func (r *ExecRule) Options() Options {
	return r.options
}

// Check implements Rule.
func (r *ExecRule) Check(tree *ast.Tree, call ast.NodeID) (*Finding, error) {
	method, ok := modelMethod(tree, call)
	if !ok {
		return nil, nil
	}
	class := r.policy.Classify(method)
	if class.Category == CategoryIrrelevant {
		return nil, nil
	}

	if hasTrailingCallback(tree, call) {
		return nil, nil
	}

	terminal, err := TerminalOf(tree, call)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ExecRuleName, err)
	}

	switch class.Category {
	case CategoryMustTerminate:
		if IsCursorTerminator(tree, terminal) && !class.CursorEligible {
			return r.finding(MessageNotNeededCursor, call), nil
		}
		if IsAssignedTo(tree, call, CursorRoles) {
			if !IsCursorTerminator(tree, terminal) {
				return r.finding(MessageExpectedCursor, call), nil
			}
			return nil, nil
		}
		if !IsAssignedTo(tree, call, QueryRoles) && !IsAnyTerminator(tree, terminal) {
			return r.finding(MessageExpected, call), nil
		}

	case CategoryMustNotTerminate:
		if IsExecTerminator(tree, terminal) {
			return r.finding(MessageNotNeeded, call), nil
		}
	}

	return nil, nil
}

func (r *ExecRule) finding(id MessageID, call ast.NodeID) *Finding {
	return &Finding{RuleID: ExecRuleName, MessageID: id, Node: call}
}
