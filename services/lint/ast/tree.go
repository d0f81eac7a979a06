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

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrFileTooLarge indicates the source exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidContent indicates the source is not valid UTF-8.
	ErrInvalidContent = errors.New("content is not valid UTF-8")

	// ErrUnsupportedLanguage indicates no grammar is registered for the file extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrMalformedTree indicates a node reference or parent link that cannot
	// occur in a tree produced by the parser.
	ErrMalformedTree = errors.New("malformed syntax tree")
)

// =============================================================================
// Node Types
// =============================================================================

// NodeID is the arena index of a node within its Tree.
type NodeID int32

// NoNode is the zero reference: no parent, no callee, no argument.
const NoNode NodeID = -1

// Valid reports whether id refers to a node (it may still be out of range
// for a particular tree).
func (id NodeID) Valid() bool {
	return id >= 0
}

// NodeKind is the closed set of syntactic shapes the rules distinguish.
// Everything else is KindOther.
type NodeKind uint8

const (
	KindOther NodeKind = iota
	KindProgram
	KindExpressionStatement
	KindCallExpression
	KindMemberExpression
	KindIdentifier
	KindFunctionExpression
	KindArrowFunction
	KindVariableDeclarator
	KindAssignmentExpression
)

var nodeKindNames = [...]string{
	KindOther:                "Other",
	KindProgram:              "Program",
	KindExpressionStatement:  "ExpressionStatement",
	KindCallExpression:       "CallExpression",
	KindMemberExpression:     "MemberExpression",
	KindIdentifier:           "Identifier",
	KindFunctionExpression:   "FunctionExpression",
	KindArrowFunction:        "ArrowFunctionExpression",
	KindVariableDeclarator:   "VariableDeclarator",
	KindAssignmentExpression: "AssignmentExpression",
}

// String returns the ESTree-style name of the kind.
func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", k)
}

// Location is a 1-based source span. Columns count bytes.
type Location struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Node is a single syntax tree node stored in a Tree's arena.
//
// Which reference fields are set depends on Kind:
//
//	KindCallExpression       Callee, Args
//	KindMemberExpression     Object, Name (property name, empty when computed)
//	KindIdentifier           Name
//	KindVariableDeclarator   Name (empty for destructuring patterns)
//	KindAssignmentExpression Name (empty unless the left side is an identifier), Operator
//
// Unused reference fields hold NoNode.
type Node struct {
	Kind     NodeKind
	Type     string
	Parent   NodeID
	Callee   NodeID
	Object   NodeID
	Args     []NodeID
	Name     string
	Operator string
	Loc      Location
}

// Comment is a source comment collected during parsing.
type Comment struct {
	Text string
	Loc  Location
}

// =============================================================================
// Tree
// =============================================================================

// Tree is an immutable, arena-indexed syntax tree for one source unit.
//
// Description:
//
//	Every node refers to its parent and children by NodeID. Argument nodes
//	are direct children of their call and parenthesized expressions are
//	transparent, so parent links follow ESTree shape.
//
// Thread Safety:
//
//	A Tree is never mutated after construction and is safe for concurrent reads.
type Tree struct {
	FilePath        string
	Language        string
	Root            NodeID
	Comments        []Comment
	HasSyntaxErrors bool

	nodes []Node
	calls []NodeID
}

// NewTree validates an arena and wraps it in a Tree.
//
// Description:
//
//	Checks that root and every Parent, Callee, Object and Args reference is
//	in range and that following Parent links from any node terminates.
//	The slice is owned by the returned Tree; callers must not modify it.
//
// Outputs:
//
//	*Tree - The validated tree.
//	error - ErrMalformedTree (wrapped) describing the first bad reference.
func NewTree(nodes []Node, root NodeID) (*Tree, error) {
	t := &Tree{Root: root, nodes: nodes}
	if !t.inRange(root) {
		return nil, fmt.Errorf("%w: root %d out of range", ErrMalformedTree, root)
	}
	if nodes[root].Parent != NoNode {
		return nil, fmt.Errorf("%w: root %d has parent %d", ErrMalformedTree, root, nodes[root].Parent)
	}

	for i := range nodes {
		n := &nodes[i]
		for _, ref := range [...]NodeID{n.Parent, n.Callee, n.Object} {
			if ref != NoNode && !t.inRange(ref) {
				return nil, fmt.Errorf("%w: node %d references %d", ErrMalformedTree, i, ref)
			}
		}
		for _, arg := range n.Args {
			if !t.inRange(arg) {
				return nil, fmt.Errorf("%w: node %d has argument %d", ErrMalformedTree, i, arg)
			}
		}
		if n.Kind == KindCallExpression {
			t.calls = append(t.calls, NodeID(i))
		}
	}

	// Parent chains must end at a root within len(nodes) steps.
	for i := range nodes {
		cur := NodeID(i)
		for steps := 0; cur != NoNode; steps++ {
			if steps > len(nodes) {
				return nil, fmt.Errorf("%w: parent cycle through node %d", ErrMalformedTree, i)
			}
			cur = nodes[cur].Parent
		}
	}

	return t, nil
}

func (t *Tree) inRange(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node with the given ID, or nil when id is out of range.
func (t *Tree) Node(id NodeID) *Node {
	if !t.inRange(id) {
		return nil
	}
	return &t.nodes[id]
}

// Kind returns the kind of id, or KindOther when id is out of range.
func (t *Tree) Kind(id NodeID) NodeKind {
	if n := t.Node(id); n != nil {
		return n.Kind
	}
	return KindOther
}

// Parent returns the structural parent of id, or NoNode.
func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.Parent
	}
	return NoNode
}

// Calls returns every call expression in source pre-order.
func (t *Tree) Calls() []NodeID {
	return t.calls
}
