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

// callbackNames are the conventional identifiers for a trailing callback.
var callbackNames = map[string]struct{}{
	"done":     {},
	"cb":       {},
	"callback": {},
	"next":     {},
}

// IsCallbackName reports whether name is a conventional callback identifier.
func IsCallbackName(name string) bool {
	_, ok := callbackNames[name]
	return ok
}

// IsCallback reports whether arg is callback-shaped: an inline function
// expression, an arrow function, or an identifier with a conventional
// callback name. NoNode and any other shape are false.
func IsCallback(tree *ast.Tree, arg ast.NodeID) bool {
	n := tree.Node(arg)
	if n == nil {
		return false
	}
	switch n.Kind {
	case ast.KindFunctionExpression, ast.KindArrowFunction:
		return true
	case ast.KindIdentifier:
		return IsCallbackName(n.Name)
	}
	return false
}

// hasTrailingCallback applies IsCallback to the call's last argument.
func hasTrailingCallback(tree *ast.Tree, call ast.NodeID) bool {
	last, ok := tree.LastArgument(call)
	return ok && IsCallback(tree, last)
}
