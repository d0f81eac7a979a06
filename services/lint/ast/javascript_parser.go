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
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("chainlint.ast")

// Language names reported on Tree.Language.
const (
	LanguageJavaScript = "javascript"
	LanguageTypeScript = "typescript"
	LanguageTSX        = "tsx"
)

// tree-sitter node types the converter maps to NodeKinds.
const (
	tsNodeProgram                = "program"
	tsNodeExpressionStatement    = "expression_statement"
	tsNodeCallExpression         = "call_expression"
	tsNodeMemberExpression       = "member_expression"
	tsNodeIdentifier             = "identifier"
	tsNodeFunction               = "function"
	tsNodeFunctionExpression     = "function_expression"
	tsNodeGeneratorFunction      = "generator_function"
	tsNodeArrowFunction          = "arrow_function"
	tsNodeVariableDeclarator     = "variable_declarator"
	tsNodeAssignmentExpression   = "assignment_expression"
	tsNodeAugmentedAssignment    = "augmented_assignment_expression"
	tsNodeArguments              = "arguments"
	tsNodeParenthesizedExpresion = "parenthesized_expression"
	tsNodeComment                = "comment"
)

var extensionLanguages = map[string]string{
	".js":  LanguageJavaScript,
	".mjs": LanguageJavaScript,
	".cjs": LanguageJavaScript,
	".jsx": LanguageJavaScript,
	".ts":  LanguageTypeScript,
	".mts": LanguageTypeScript,
	".cts": LanguageTypeScript,
	".tsx": LanguageTSX,
}

// LanguageForPath returns the grammar name for a file path's extension.
func LanguageForPath(filePath string) (string, bool) {
	lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(filePath))]
	return lang, ok
}

// SupportedExtensions returns every extension the parser accepts.
func SupportedExtensions() []string {
	return []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx"}
}

func grammarFor(lang string) *sitter.Language {
	switch lang {
	case LanguageJavaScript:
		return javascript.GetLanguage()
	case LanguageTypeScript:
		return typescript.GetLanguage()
	case LanguageTSX:
		return tsx.GetLanguage()
	}
	return nil
}

// JavaScriptParser builds arena syntax trees from JavaScript and TypeScript source.
//
// Description:
//
//	JavaScriptParser uses tree-sitter to parse the source and converts the
//	concrete syntax tree into a Tree with ESTree parent semantics: the
//	arguments wrapper is elided, parenthesized expressions are transparent
//	and only the node shapes the rules inspect get a dedicated NodeKind.
//
// Thread Safety:
//
//	JavaScriptParser is safe for concurrent use. Each Parse call creates its
//	own tree-sitter parser instance.
//
// Example:
//
//	parser := NewJavaScriptParser()
//	tree, err := parser.Parse(ctx, content, "models/user.js")
//	if err != nil {
//	    return fmt.Errorf("parse: %w", err)
//	}
//	for _, call := range tree.Calls() {
//	    name, _ := tree.MethodName(call)
//	    fmt.Println(name)
//	}
type JavaScriptParser struct {
	options JavaScriptParserOptions
}

// JavaScriptParserOptions configures JavaScriptParser behavior.
type JavaScriptParserOptions struct {
	// MaxFileSize is the maximum file size in bytes to parse.
	// Files larger than this return ErrFileTooLarge.
	// Default: 10MB
	MaxFileSize int
}

// DefaultJavaScriptParserOptions returns the default options.
func DefaultJavaScriptParserOptions() JavaScriptParserOptions {
	return JavaScriptParserOptions{
		MaxFileSize: 10 * 1024 * 1024, // 10MB
	}
}

// JavaScriptParserOption is a functional option for configuring JavaScriptParser.
type JavaScriptParserOption func(*JavaScriptParserOptions)

// WithMaxFileSize sets the maximum file size for parsing.
func WithMaxFileSize(size int) JavaScriptParserOption {
	return func(o *JavaScriptParserOptions) {
		if size > 0 {
			o.MaxFileSize = size
		}
	}
}

// NewJavaScriptParser creates a new JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	options := DefaultJavaScriptParserOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &JavaScriptParser{options: options}
}

// Parse builds the syntax tree for one source file.
//
// Description:
//
//	Selects the grammar from the file extension, parses with tree-sitter and
//	converts the result. Grammar errors do not fail the parse; they set
//	Tree.HasSyntaxErrors and the rest of the file is still converted.
//
// Inputs:
//
//	ctx      - Context for cancellation. Checked before and after parsing.
//	content  - Raw source bytes. Must be valid UTF-8.
//	filePath - Path used for grammar selection and locations.
//
// Outputs:
//
//	*Tree - The converted tree. Never nil on success.
//	error - ErrFileTooLarge, ErrInvalidContent, ErrUnsupportedLanguage or a
//	        wrapped context/tree-sitter error.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	lang, ok := LanguageForPath(filePath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filepath.Ext(filePath))
	}
	if len(content) > p.options.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	ctx, span := tracer.Start(ctx, "JavaScriptParser.Parse")
	defer span.End()

	parser := sitter.NewParser()
	parser.SetLanguage(grammarFor(lang))

	tsTree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tsTree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	root := tsTree.RootNode()
	c := &converter{content: content}
	c.convert(root)

	tree, err := NewTree(c.nodes, 0)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", filePath, err)
	}
	tree.FilePath = filePath
	tree.Language = lang
	tree.Comments = c.comments
	tree.HasSyntaxErrors = root.HasError()

	span.SetAttributes(
		attribute.String("file", filePath),
		attribute.String("language", lang),
		attribute.Int("nodes", tree.Len()),
		attribute.Int("calls", len(tree.Calls())),
		attribute.Bool("syntax_errors", tree.HasSyntaxErrors),
	)

	return tree, nil
}

// =============================================================================
// Conversion
// =============================================================================

// attachRole says how a converted node is linked into its parent.
type attachRole uint8

const (
	attachChild attachRole = iota
	attachCallee
	attachObject
	attachArgument
)

type convertEntry struct {
	node   *sitter.Node
	parent NodeID
	role   attachRole
}

type converter struct {
	content  []byte
	nodes    []Node
	comments []Comment
}

// convert walks the concrete tree with an explicit stack so deeply nested
// chains cannot exhaust the goroutine stack. Nodes are appended in pre-order.
func (c *converter) convert(root *sitter.Node) {
	stack := make([]convertEntry, 0, 64)
	stack = append(stack, convertEntry{node: root, parent: NoNode, role: attachChild})

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := entry.node
		if n == nil {
			continue
		}

		switch n.Type() {
		case tsNodeComment:
			c.comments = append(c.comments, Comment{
				Text: n.Content(c.content),
				Loc:  locationOf(n),
			})
			continue

		case tsNodeParenthesizedExpresion, tsNodeArguments:
			// Transparent: children attach to the enclosing node in the
			// wrapper's role. Arguments wrappers only occur under calls.
			role := entry.role
			if n.Type() == tsNodeArguments {
				role = attachArgument
			}
			stack = c.pushNamedChildren(stack, n, entry.parent, role, nil)
			continue
		}

		id := c.add(n, entry.parent)
		c.attach(entry.parent, id, entry.role)
		stack = c.pushChildren(stack, n, id)
	}
}

// add appends the node for n and fills in its kind-specific scalar fields.
func (c *converter) add(n *sitter.Node, parent NodeID) NodeID {
	node := Node{
		Kind:   KindOther,
		Type:   n.Type(),
		Parent: parent,
		Callee: NoNode,
		Object: NoNode,
		Loc:    locationOf(n),
	}

	switch n.Type() {
	case tsNodeProgram:
		node.Kind = KindProgram
	case tsNodeExpressionStatement:
		node.Kind = KindExpressionStatement
	case tsNodeCallExpression:
		// Tagged templates share the grammar node but are not calls in ESTree.
		if args := n.ChildByFieldName("arguments"); args != nil && args.Type() == tsNodeArguments {
			node.Kind = KindCallExpression
		}
	case tsNodeMemberExpression:
		node.Kind = KindMemberExpression
		if prop := n.ChildByFieldName("property"); prop != nil {
			node.Name = prop.Content(c.content)
		}
	case tsNodeIdentifier:
		node.Kind = KindIdentifier
		node.Name = n.Content(c.content)
	case tsNodeFunction, tsNodeFunctionExpression, tsNodeGeneratorFunction:
		node.Kind = KindFunctionExpression
	case tsNodeArrowFunction:
		node.Kind = KindArrowFunction
	case tsNodeVariableDeclarator:
		node.Kind = KindVariableDeclarator
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == tsNodeIdentifier {
			node.Name = name.Content(c.content)
		}
	case tsNodeAssignmentExpression:
		node.Kind = KindAssignmentExpression
		node.Operator = "="
		if left := n.ChildByFieldName("left"); left != nil && left.Type() == tsNodeIdentifier {
			node.Name = left.Content(c.content)
		}
	case tsNodeAugmentedAssignment:
		node.Kind = KindAssignmentExpression
		if op := n.ChildByFieldName("operator"); op != nil {
			node.Operator = op.Content(c.content)
		}
		if left := n.ChildByFieldName("left"); left != nil && left.Type() == tsNodeIdentifier {
			node.Name = left.Content(c.content)
		}
	}

	c.nodes = append(c.nodes, node)
	return NodeID(len(c.nodes) - 1)
}

func (c *converter) attach(parent, child NodeID, role attachRole) {
	if parent == NoNode {
		return
	}
	p := &c.nodes[parent]
	switch role {
	case attachCallee:
		p.Callee = child
	case attachObject:
		p.Object = child
	case attachArgument:
		p.Args = append(p.Args, child)
	}
}

// pushChildren schedules the named children of n. Calls and member
// expressions give their function and object children a linking role; the
// member's property is folded into Node.Name and not converted.
func (c *converter) pushChildren(stack []convertEntry, n *sitter.Node, id NodeID) []convertEntry {
	switch c.nodes[id].Kind {
	case KindCallExpression:
		fn := n.ChildByFieldName("function")
		return c.pushNamedChildren(stack, n, id, attachChild, func(child *sitter.Node) attachRole {
			if sameNode(child, fn) {
				return attachCallee
			}
			return attachChild
		})
	case KindMemberExpression:
		obj := n.ChildByFieldName("object")
		prop := n.ChildByFieldName("property")
		var kept []*sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child == nil || sameNode(child, prop) {
				continue
			}
			kept = append(kept, child)
		}
		for i := len(kept) - 1; i >= 0; i-- {
			role := attachChild
			if sameNode(kept[i], obj) {
				role = attachObject
			}
			stack = append(stack, convertEntry{node: kept[i], parent: id, role: role})
		}
		return stack
	}
	return c.pushNamedChildren(stack, n, id, attachChild, nil)
}

// pushNamedChildren pushes named children in reverse so they pop in source order.
func (c *converter) pushNamedChildren(stack []convertEntry, n *sitter.Node, parent NodeID, role attachRole, roleOf func(*sitter.Node) attachRole) []convertEntry {
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		r := role
		if roleOf != nil {
			r = roleOf(child)
		}
		stack = append(stack, convertEntry{node: child, parent: parent, role: r})
	}
	return stack
}

// sameNode compares spans and types; field lookups return fresh wrappers.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func locationOf(n *sitter.Node) Location {
	start, end := n.StartPoint(), n.EndPoint()
	return Location{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}
