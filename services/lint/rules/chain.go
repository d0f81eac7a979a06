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

// TerminalOf walks a call's fluent chain forward and returns its terminal node.
//
// Description:
//
//	Starts at the call's grandparent (for `a.b().c()` that is the c() call,
//	one member access above b()). While the current node has a parent, is
//	exactly the caller of its own grandparent and is not itself a
//	terminator, the walk advances to that grandparent. The node it stops on
//	is returned unclassified.
//
// Inputs:
//
//	tree - The syntax tree. Must not be nil.
//	call - A call node with at least a parent and a grandparent.
//
// Outputs:
//
//	ast.NodeID - The first terminator reached, or the last link of the
//	             unbroken chain. May be the grandparent itself, and need not
//	             be a call (for a bare statement it is the statement's parent).
//	error      - ast.ErrMalformedTree (wrapped) when call has no grandparent.
//
// Example:
//
//	Model.update().lean().exec().then(fn)  // update() -> exec()
//	Model.find().sort()                    // find()   -> sort()
//	Model.update()                         // update() -> Program
func TerminalOf(tree *ast.Tree, call ast.NodeID) (ast.NodeID, error) {
	parent := tree.Parent(call)
	if parent == ast.NoNode {
		return ast.NoNode, fmt.Errorf("%w: call %d has no parent", ast.ErrMalformedTree, call)
	}
	cur := tree.Parent(parent)
	if cur == ast.NoNode {
		return ast.NoNode, fmt.Errorf("%w: call %d has no grandparent", ast.ErrMalformedTree, call)
	}

	for {
		p := tree.Parent(cur)
		if p == ast.NoNode {
			break
		}
		next := tree.Parent(p)
		caller, ok := tree.Caller(next)
		if !ok || caller != cur {
			break
		}
		if IsAnyTerminator(tree, cur) {
			break
		}
		cur = next
	}
	return cur, nil
}
