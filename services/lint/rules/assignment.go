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
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AleutianAI/chainlint/services/lint/ast"
)

// Role name sets for binding-name conventions.
var (
	// QueryRoles marks a result kept as an unexecuted query.
	QueryRoles = []string{"query", "find"}

	// CursorRoles marks a result that must be consumed as a cursor or stream.
	CursorRoles = []string{"cursor", "stream"}
)

// BindingName returns the name a call's result is bound to: the declared
// identifier of a variable declarator, or the identifier on the left of a
// plain `=` assignment.
func BindingName(tree *ast.Tree, call ast.NodeID) (string, bool) {
	parent := tree.Node(tree.Parent(call))
	if parent == nil {
		return "", false
	}
	switch parent.Kind {
	case ast.KindVariableDeclarator:
	case ast.KindAssignmentExpression:
		if parent.Operator != "=" {
			return "", false
		}
	default:
		return "", false
	}
	if parent.Name == "" {
		return "", false
	}
	return parent.Name, true
}

// IsAssignedTo reports whether the call's result is bound to a name that
// matches one of roles (see MatchesRoleName).
func IsAssignedTo(tree *ast.Tree, call ast.NodeID, roles []string) bool {
	name, ok := BindingName(tree, call)
	if !ok {
		return false
	}
	return MatchesRoleName(name, roles)
}

// MatchesRoleName reports whether name equals a role, or ends with a role
// either as written or with its first letter capitalized.
//
// The suffix rule is deliberately loose: "userQuery" and "query" match
// QueryRoles, and so does "backQuery".
func MatchesRoleName(name string, roles []string) bool {
	for _, role := range roles {
		if name == role {
			return true
		}
	}
	for _, role := range roles {
		if role == "" {
			continue
		}
		if strings.HasSuffix(name, role) || strings.HasSuffix(name, capitalize(role)) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
