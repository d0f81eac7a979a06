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

// Terminator method names.
const (
	TerminatorExec   = "exec"
	TerminatorCursor = "cursor"
	TerminatorStream = "stream"
)

// IsExecTerminator reports whether node is an exec() call.
func IsExecTerminator(tree *ast.Tree, node ast.NodeID) bool {
	name, ok := tree.MethodName(node)
	return ok && name == TerminatorExec
}

// IsCursorTerminator reports whether node is a cursor() or stream() call.
func IsCursorTerminator(tree *ast.Tree, node ast.NodeID) bool {
	name, ok := tree.MethodName(node)
	return ok && (name == TerminatorCursor || name == TerminatorStream)
}

// IsAnyTerminator reports whether node is any chain terminator.
func IsAnyTerminator(tree *ast.Tree, node ast.NodeID) bool {
	return IsExecTerminator(tree, node) || IsCursorTerminator(tree, node)
}
