// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

// =============================================================================
// Call Node Accessors
// =============================================================================
//
// All accessors are total: a node of the wrong shape yields false or NoNode,
// never a panic.

// member returns the member-expression callee of a call.
func (t *Tree) member(call NodeID) *Node {
	n := t.Node(call)
	if n == nil || n.Kind != KindCallExpression {
		return nil
	}
	callee := t.Node(n.Callee)
	if callee == nil || callee.Kind != KindMemberExpression {
		return nil
	}
	return callee
}

// MethodName returns the property name of the call's member callee.
//
// Example:
//
//	Model.find({})   -> "find", true
//	find({})         -> "", false
//	Model["find"]()  -> "", false
func (t *Tree) MethodName(call NodeID) (string, bool) {
	m := t.member(call)
	if m == nil || m.Name == "" {
		return "", false
	}
	return m.Name, true
}

// Caller returns the object a method is invoked on: callee.object.
func (t *Tree) Caller(call NodeID) (NodeID, bool) {
	m := t.member(call)
	if m == nil || m.Object == NoNode {
		return NoNode, false
	}
	return m.Object, true
}

// CallerName returns the caller's identifier name when the caller is a
// plain identifier.
func (t *Tree) CallerName(call NodeID) (string, bool) {
	id, ok := t.Caller(call)
	if !ok {
		return "", false
	}
	n := t.Node(id)
	if n.Kind != KindIdentifier || n.Name == "" {
		return "", false
	}
	return n.Name, true
}

// Arguments returns the call's ordered argument list. Nil for non-calls.
func (t *Tree) Arguments(call NodeID) []NodeID {
	n := t.Node(call)
	if n == nil || n.Kind != KindCallExpression {
		return nil
	}
	return n.Args
}

// LastArgument returns the trailing argument of a call.
func (t *Tree) LastArgument(call NodeID) (NodeID, bool) {
	args := t.Arguments(call)
	if len(args) == 0 {
		return NoNode, false
	}
	return args[len(args)-1], true
}
