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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// JavaParserOption configures a JavaParser instance.
type JavaParserOption func(*JavaParser)

// WithMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Must be positive.
//
// Example:
//
//	parser := NewJavaParser(WithMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithMaxFileSize(bytes int64) JavaParserOption {
	return func(p *JavaParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// JavaParser extracts declaration trees from Java source code.
//
// Description:
//
//	JavaParser uses tree-sitter to parse Java source files into ParseResult
//	values: package declaration, imports, type declarations (with fields,
//	methods, constructors, initializer blocks, and nested types), and a
//	flat list of call sites with source ranges. It is error-tolerant and
//	returns partial results for syntactically invalid code.
//
// Thread Safety:
//
//	JavaParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser instance internally.
//
// Example:
//
//	parser := NewJavaParser()
//	result, err := parser.Parse(ctx, []byte("class A {}"), "A.java")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, t := range result.Types {
//	    fmt.Printf("%s: %s\n", t.Kind, t.Name)
//	}
type JavaParser struct {
	maxFileSize int64
}

// NewJavaParser creates a new JavaParser with the given options.
//
// Outputs:
//   - *JavaParser: Configured parser instance, never nil.
//
// Thread Safety:
//
//	The returned JavaParser is safe for concurrent use.
func NewJavaParser(opts ...JavaParserOption) *JavaParser {
	p := &JavaParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extensions returns the file extensions this parser handles.
func (p *JavaParser) Extensions() []string {
	return []string{".java"}
}

// Parse extracts a declaration tree from Java source code.
//
// Description:
//
//	Parses the provided source with tree-sitter and walks the resulting
//	syntax tree once for declarations and once for call expressions. The
//	parser never resolves names — that is the graph pipeline's job.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing;
//     tree-sitter parsing itself cannot be interrupted mid-parse.
//   - content: Raw Java source bytes. Must be valid UTF-8.
//   - filePath: Path relative to the project root, forward slashes.
//
// Outputs:
//   - *ParseResult: Extracted declarations. Never nil on success. May
//     contain partial results with Errors entries for invalid syntax.
//   - error: Non-nil for complete failures (ErrFileTooLarge,
//     ErrInvalidContent, context errors, tree-sitter failure).
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *JavaParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	// New parser instance per call for thread safety.
	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Imports:       make([]ImportDecl, 0),
		Types:         make([]*TypeDecl, 0),
		Calls:         make([]CallSite, 0),
		Errors:        make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.extractPackage(root, content, result)
	p.extractImports(root, content, filePath, result)
	p.extractTypes(root, content, filePath, result, 0)
	p.extractCallSites(ctx, root, content, filePath, result)

	if err := result.Validate(); err != nil {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	setParseSpanResult(span, len(result.Types), len(result.Calls), len(result.Errors))
	recordParseMetrics(time.Since(start), len(result.Types), true)

	return result, nil
}

// extractPackage reads the package declaration, if any.
func (p *JavaParser) extractPackage(root *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil || child.Type() != "package_declaration" {
			continue
		}
		// The package name is the (scoped_)identifier child.
		for j := 0; j < int(child.NamedChildCount()); j++ {
			name := child.NamedChild(j)
			if name == nil {
				continue
			}
			if name.Type() == "scoped_identifier" || name.Type() == "identifier" {
				result.Package = nodeText(name, content)
				return
			}
		}
		return
	}
}

// extractImports reads all import declarations on the file.
func (p *JavaParser) extractImports(root *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil || child.Type() != "import_declaration" {
			continue
		}

		imp := ImportDecl{Location: nodeLocation(child, filePath)}
		for j := 0; j < int(child.ChildCount()); j++ {
			part := child.Child(j)
			if part == nil {
				continue
			}
			switch part.Type() {
			case "static":
				imp.Static = true
			case "asterisk":
				imp.Wildcard = true
			case "scoped_identifier", "identifier":
				imp.Path = nodeText(part, content)
			}
		}
		if imp.Path == "" {
			continue
		}
		result.Imports = append(result.Imports, imp)
	}
}

// extractTypes walks top-level (or nested) type declarations.
func (p *JavaParser) extractTypes(parent *sitter.Node, content []byte, filePath string, result *ParseResult, depth int) {
	if depth > MaxTypeNestingDepth {
		result.Errors = append(result.Errors, fmt.Sprintf("type nesting deeper than %d levels, truncated", MaxTypeNestingDepth))
		return
	}
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		child := parent.NamedChild(i)
		if child == nil {
			continue
		}
		if decl := p.extractTypeDecl(child, content, filePath, result, depth); decl != nil {
			result.Types = append(result.Types, decl)
		}
	}
}

// extractTypeDecl extracts a single class/interface/enum declaration,
// including nested declarations. Returns nil for non-type nodes.
func (p *JavaParser) extractTypeDecl(node *sitter.Node, content []byte, filePath string, result *ParseResult, depth int) *TypeDecl {
	var kind TypeKind
	switch node.Type() {
	case "class_declaration":
		kind = TypeKindClass
	case "interface_declaration":
		kind = TypeKindInterface
	case "enum_declaration":
		kind = TypeKindEnum
	default:
		return nil
	}
	if depth > MaxTypeNestingDepth {
		return nil
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	decl := &TypeDecl{
		Kind:      kind,
		Name:      nodeText(nameNode, content),
		Modifiers: extractModifiers(node, content),
		Location:  nodeLocation(node, filePath),
	}

	// extends: classes use the "superclass" field; interfaces use an
	// extends_interfaces child carrying a type_list.
	if sc := node.ChildByFieldName("superclass"); sc != nil {
		for j := 0; j < int(sc.NamedChildCount()); j++ {
			if t := sc.NamedChild(j); t != nil {
				decl.Extends = append(decl.Extends, typeToken(t, content))
			}
		}
	}
	for j := 0; j < int(node.ChildCount()); j++ {
		part := node.Child(j)
		if part == nil || part.Type() != "extends_interfaces" {
			continue
		}
		decl.Extends = append(decl.Extends, typeListTokens(part, content)...)
	}

	// implements: the "interfaces" field holds a super_interfaces node.
	if si := node.ChildByFieldName("interfaces"); si != nil {
		decl.Implements = append(decl.Implements, typeListTokens(si, content)...)
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return decl
	}

	// Enum bodies nest members inside enum_body_declarations. Per-constant
	// anonymous bodies are intentionally not modeled.
	if kind == TypeKindEnum {
		for j := 0; j < int(body.NamedChildCount()); j++ {
			part := body.NamedChild(j)
			if part != nil && part.Type() == "enum_body_declarations" {
				body = part
				break
			}
		}
	}

	p.extractTypeBody(body, content, filePath, decl, result, depth)
	return decl
}

// extractTypeBody collects fields, methods, constructors, initializer
// blocks, and nested types from a class/interface/enum body node.
func (p *JavaParser) extractTypeBody(body *sitter.Node, content []byte, filePath string, decl *TypeDecl, result *ParseResult, depth int) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member == nil {
			continue
		}
		switch member.Type() {
		case "field_declaration", "constant_declaration":
			// Interface bodies emit their fields as constant_declaration.
			decl.Fields = append(decl.Fields, p.extractFields(member, content, filePath, decl.Kind)...)

		case "method_declaration":
			if m := p.extractMethod(member, content, filePath, false); m != nil {
				decl.Methods = append(decl.Methods, *m)
			}

		case "constructor_declaration":
			if m := p.extractMethod(member, content, filePath, true); m != nil {
				decl.Methods = append(decl.Methods, *m)
			}

		case "static_initializer":
			decl.Blocks = append(decl.Blocks, InitBlock{Static: true, Location: nodeLocation(member, filePath)})

		case "block":
			// An instance initializer appears as a bare block in the body.
			decl.Blocks = append(decl.Blocks, InitBlock{Location: nodeLocation(member, filePath)})

		case "class_declaration", "interface_declaration", "enum_declaration":
			if nested := p.extractTypeDecl(member, content, filePath, result, depth+1); nested != nil {
				decl.Nested = append(decl.Nested, nested)
			}
		}
	}
}

// extractFields expands a field_declaration into one FieldDecl per
// declarator ("int a, b = 0;" yields two entries).
func (p *JavaParser) extractFields(node *sitter.Node, content []byte, filePath string, owner TypeKind) []FieldDecl {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}
	token := typeToken(typeNode, content)
	mods := extractModifiers(node, content)
	static := hasModifier(mods, "static")
	// Interface fields are implicitly public static final.
	if owner == TypeKindInterface {
		static = true
	}

	var fields []FieldDecl
	for i := 0; i < int(node.NamedChildCount()); i++ {
		d := node.NamedChild(i)
		if d == nil || d.Type() != "variable_declarator" {
			continue
		}
		nameNode := d.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		fields = append(fields, FieldDecl{
			Name:           nodeText(nameNode, content),
			Type:           token,
			Static:         static,
			HasInitializer: d.ChildByFieldName("value") != nil,
			Location:       nodeLocation(d, filePath),
		})
	}
	return fields
}

// extractMethod extracts a method or constructor declaration.
func (p *JavaParser) extractMethod(node *sitter.Node, content []byte, filePath string, isCtor bool) *MethodDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	m := &MethodDecl{
		Name:          nodeText(nameNode, content),
		IsConstructor: isCtor,
		Modifiers:     extractModifiers(node, content),
		Location:      nodeLocation(node, filePath),
	}

	if !isCtor {
		if rt := node.ChildByFieldName("type"); rt != nil {
			m.ReturnType = typeToken(rt, content)
		}
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			fp := params.NamedChild(i)
			if fp == nil {
				continue
			}
			switch fp.Type() {
			case "formal_parameter", "spread_parameter":
				pt := fp.ChildByFieldName("type")
				pn := fp.ChildByFieldName("name")
				param := Param{}
				if pt != nil {
					param.Type = typeToken(pt, content)
				}
				if pn != nil {
					param.Name = nodeText(pn, content)
				} else {
					// spread_parameter puts the declarator after the type
					for j := 0; j < int(fp.NamedChildCount()); j++ {
						if vd := fp.NamedChild(j); vd != nil && vd.Type() == "variable_declarator" {
							if n := vd.ChildByFieldName("name"); n != nil {
								param.Name = nodeText(n, content)
							}
						}
					}
				}
				m.Params = append(m.Params, param)
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		m.Locals = extractLocals(body, content)
	}

	return m
}

// extractLocals collects local variable declarations anywhere in a body.
// Visibility is approximated downstream by declaration line.
func extractLocals(body *sitter.Node, content []byte) []LocalVar {
	var locals []LocalVar

	stack := []*sitter.Node{body}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		if node.Type() == "local_variable_declaration" {
			typeNode := node.ChildByFieldName("type")
			token := ""
			if typeNode != nil {
				token = typeToken(typeNode, content)
			}
			for i := 0; i < int(node.NamedChildCount()); i++ {
				d := node.NamedChild(i)
				if d == nil || d.Type() != "variable_declarator" {
					continue
				}
				if nameNode := d.ChildByFieldName("name"); nameNode != nil {
					locals = append(locals, LocalVar{
						Name: nodeText(nameNode, content),
						Type: token,
						Line: int(d.StartPoint().Row) + 1,
					})
				}
			}
		}

		// Skip nested type declarations: their locals belong elsewhere.
		switch node.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration":
			continue
		}

		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.NamedChild(i))
		}
	}

	return locals
}

// extractCallSites walks the whole file once collecting method invocations
// and instance creations.
//
// Description:
//
//	Call sites are collected flat with source ranges; the invocation
//	resolver attributes each to its owning method or initializer by range
//	containment, so calls in field initializers and initializer blocks
//	need no special casing here.
//
// Inputs:
//   - ctx: Context for cancellation. Checked every 100 nodes.
//   - root: The file's root node.
//   - content: Source bytes.
//   - filePath: Path for location data.
//   - result: Receives the extracted call sites.
//
// Thread Safety: Safe for concurrent use.
func (p *JavaParser) extractCallSites(ctx context.Context, root *sitter.Node, content []byte, filePath string, result *ParseResult) {
	stack := []*sitter.Node{root}
	nodeCount := 0

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		nodeCount++
		if nodeCount%100 == 0 && ctx.Err() != nil {
			slog.Debug("context cancelled during call extraction",
				slog.String("file", filePath),
				slog.Int("calls_found", len(result.Calls)))
			return
		}

		if len(result.Calls) >= MaxCallSitesPerFile {
			slog.Warn("max call sites per file reached",
				slog.String("file", filePath),
				slog.Int("limit", MaxCallSitesPerFile))
			return
		}

		switch node.Type() {
		case "method_invocation":
			if call := extractInvocation(node, content, filePath); call != nil {
				result.Calls = append(result.Calls, *call)
			}
		case "object_creation_expression":
			if call := extractCreation(node, content, filePath); call != nil {
				result.Calls = append(result.Calls, *call)
			}
		}

		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.NamedChild(i))
		}
	}
}

// extractInvocation extracts a single method_invocation node.
func extractInvocation(node *sitter.Node, content []byte, filePath string) *CallSite {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	call := &CallSite{
		Kind:     CallUnqualified,
		Name:     nodeText(nameNode, content),
		ArgCount: argCount(node),
		Location: nodeLocation(node, filePath),
	}

	if obj := node.ChildByFieldName("object"); obj != nil {
		switch obj.Type() {
		case "this":
			call.Kind = CallThis
		case "super":
			call.Kind = CallSuper
		default:
			call.Kind = CallQualified
			call.Receiver = nodeText(obj, content)
		}
	}

	if call.Name == "" {
		return nil
	}
	return call
}

// extractCreation extracts a single object_creation_expression node.
func extractCreation(node *sitter.Node, content []byte, filePath string) *CallSite {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}

	token := typeToken(typeNode, content)
	if token == "" {
		return nil
	}

	return &CallSite{
		Kind:     CallConstructor,
		Name:     token,
		ArgCount: argCount(node),
		Location: nodeLocation(node, filePath),
	}
}

// argCount counts named children of the arguments field.
func argCount(node *sitter.Node) int {
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return 0
	}
	return int(args.NamedChildCount())
}

// extractModifiers reads the modifiers child of a declaration node.
// Annotations are skipped; only keyword modifiers are kept.
func extractModifiers(node *sitter.Node, content []byte) []string {
	var mods []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || child.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			m := child.Child(j)
			if m == nil {
				continue
			}
			switch m.Type() {
			case "public", "protected", "private", "static", "final",
				"abstract", "synchronized", "native", "strictfp",
				"transient", "volatile", "default", "sealed":
				mods = append(mods, m.Type())
			}
		}
		break
	}
	return mods
}

// hasModifier reports whether the modifier list contains mod.
func hasModifier(mods []string, mod string) bool {
	for _, m := range mods {
		if m == mod {
			return true
		}
	}
	return false
}

// typeListTokens extracts type tokens from a super_interfaces or
// extends_interfaces node, whose single named child is a type_list.
func typeListTokens(node *sitter.Node, content []byte) []string {
	var tokens []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() == "type_list" {
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if t := child.NamedChild(j); t != nil {
					tokens = append(tokens, typeToken(t, content))
				}
			}
			continue
		}
		tokens = append(tokens, typeToken(child, content))
	}
	return tokens
}

// typeToken renders a type node as a bare name token: generics are
// stripped ("List<String>" → "List"), array suffixes kept ("int[]").
// Qualified tokens ("java.util.List") are kept whole.
func typeToken(node *sitter.Node, content []byte) string {
	text := nodeText(node, content)
	if i := strings.IndexByte(text, '<'); i >= 0 {
		// Preserve an array suffix that follows the type arguments.
		suffix := ""
		if j := strings.LastIndexByte(text, '>'); j >= 0 && j+1 < len(text) {
			suffix = strings.TrimSpace(text[j+1:])
		}
		text = strings.TrimSpace(text[:i]) + suffix
	}
	return strings.TrimSpace(text)
}

// nodeText returns the source text of a node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// nodeLocation builds a Location from a node's source range.
func nodeLocation(node *sitter.Node, filePath string) Location {
	return Location{
		FilePath:  filePath,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
}
