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
	"github.com/AleutianAI/chainlint/services/lint/ast"
)

// DeprecatedRuleName is the rule ID of DeprecatedRule.
const DeprecatedRuleName = "mongoose-deprecated"

// DeprecatedRule reports model calls to deprecated methods. It is a flat
// name check with no chain traversal.
type DeprecatedRule struct {
	policy  *Policy
	options Options
}

// NewDeprecatedRule creates a DeprecatedRule. A nil policy uses DefaultPolicy.
func NewDeprecatedRule(policy *Policy, options Options) *DeprecatedRule {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &DeprecatedRule{policy: policy, options: options}
}

// Name implements Rule.
func (r *DeprecatedRule) Name() string {
	return DeprecatedRuleName
}

// Meta implements Rule.
func (r *DeprecatedRule) Meta() Meta {
	return Meta{
		Description: "disallow deprecated model methods",
		DocsURL:     "https://mongoosejs.com/docs/deprecations.html",
		Messages: map[MessageID]string{
			MessageDeprecated: "Method is deprecated.",
		},
	}
}

// Check implements Rule.
func (r *DeprecatedRule) Check(tree *ast.Tree, call ast.NodeID) (*Finding, error) {
	method, ok := modelMethod(tree, call)
	if !ok || !r.policy.IsDeprecated(method) {
		return nil, nil
	}
	return &Finding{RuleID: DeprecatedRuleName, MessageID: MessageDeprecated, Node: call}, nil
}
