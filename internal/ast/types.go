// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast parses Java source files into declaration trees.
//
// The package is the graph pipeline's only view of Java syntax: it turns
// raw source bytes into ParseResult values (packages, imports, type
// declarations, call sites with source ranges) and nothing downstream
// ever touches tree-sitter nodes directly.
package ast

import (
	"errors"
	"fmt"
)

// Parse limits. Files beyond these bounds are rejected or truncated to
// keep a single pathological file from dominating a build.
const (
	// DefaultMaxFileSize is the default maximum file size accepted by the
	// parser (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold above which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024

	// MaxCallSitesPerFile caps the number of call sites extracted from a
	// single file.
	MaxCallSitesPerFile = 10000

	// MaxTypeNestingDepth caps recursion into nested type declarations.
	MaxTypeNestingDepth = 20
)

// Sentinel errors returned by Parse.
var (
	// ErrFileTooLarge indicates the content exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// Location identifies a source range within a file.
//
// Lines are 1-based, columns 0-based, both ends inclusive of the range
// reported by tree-sitter.
type Location struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartCol  int    `json:"start_col"`
	EndCol    int    `json:"end_col"`
}

// Contains reports whether other lies entirely within l.
// Both locations must belong to the same file.
func (l Location) Contains(other Location) bool {
	if l.FilePath != other.FilePath {
		return false
	}
	if other.StartLine < l.StartLine || other.EndLine > l.EndLine {
		return false
	}
	if other.StartLine == l.StartLine && other.StartCol < l.StartCol {
		return false
	}
	if other.EndLine == l.EndLine && other.EndCol > l.EndCol {
		return false
	}
	return true
}

// Span returns the number of lines covered by the range. Used to pick the
// smallest enclosing declaration when attributing call sites.
func (l Location) Span() int {
	return l.EndLine - l.StartLine
}

// Narrower reports whether l covers a strictly smaller range than other.
// Line count decides first; column width breaks ties between ranges of
// equal line count, so nested one-line ranges on the same line still
// attribute to the innermost one.
func (l Location) Narrower(other Location) bool {
	if l.Span() != other.Span() {
		return l.Span() < other.Span()
	}
	return l.EndCol-l.StartCol < other.EndCol-other.StartCol
}

// TypeKind discriminates the three Java type declaration forms.
type TypeKind int

const (
	// TypeKindClass is a class declaration.
	TypeKindClass TypeKind = iota

	// TypeKindInterface is an interface declaration.
	TypeKindInterface

	// TypeKindEnum is an enum declaration.
	TypeKindEnum
)

// String returns the lowercase name of the type kind.
func (k TypeKind) String() string {
	switch k {
	case TypeKindClass:
		return "class"
	case TypeKindInterface:
		return "interface"
	case TypeKindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// CallKind discriminates call-expression forms. Every resolver downstream
// switches exhaustively over these values.
type CallKind int

const (
	// CallUnqualified is a bare call: f(args).
	CallUnqualified CallKind = iota

	// CallThis is an explicitly this-qualified call: this.f(args).
	CallThis

	// CallSuper is a super-qualified call: super.f(args).
	CallSuper

	// CallQualified is a call on any other receiver expression: recv.f(args).
	CallQualified

	// CallConstructor is an instance creation: new T(args).
	CallConstructor
)

// String returns the lowercase name of the call kind.
func (k CallKind) String() string {
	switch k {
	case CallUnqualified:
		return "unqualified"
	case CallThis:
		return "this"
	case CallSuper:
		return "super"
	case CallQualified:
		return "qualified"
	case CallConstructor:
		return "constructor"
	default:
		return "unknown"
	}
}

// ImportDecl is a single import declaration on a file.
type ImportDecl struct {
	// Path is the dotted import path without the trailing ".*" for
	// wildcard imports (e.g. "java.util" for "import java.util.*;").
	Path string `json:"path"`

	// Wildcard is true for on-demand imports ("import p.*;").
	Wildcard bool `json:"wildcard,omitempty"`

	// Static is true for static imports ("import static p.C.m;").
	Static bool `json:"static,omitempty"`

	Location Location `json:"location"`
}

// Param is a formal parameter of a method or constructor.
type Param struct {
	Name string `json:"name"`

	// Type is the declared type token with generics stripped
	// (e.g. "List" for "List<String>", "int[]" for "int[]").
	Type string `json:"type"`
}

// LocalVar is a local variable declaration inside a method body, recorded
// for receiver-type resolution. Line is the declaration line; a local is
// only visible to call sites on later (or the same) line.
type LocalVar struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Line int    `json:"line"`
}

// CallSite is one call expression found in a file.
//
// Call sites are collected flat per file rather than per declaration; the
// invocation resolver attributes each site to its owning method or
// initializer by source-range containment.
type CallSite struct {
	Kind CallKind `json:"kind"`

	// Name is the invoked method name, or the created type token for
	// CallConstructor.
	Name string `json:"name"`

	// Receiver is the receiver expression text for CallQualified calls
	// (e.g. "helper", "Math", "this.parts"). Empty for other kinds.
	Receiver string `json:"receiver,omitempty"`

	// ArgCount is the number of arguments at the call site.
	ArgCount int `json:"arg_count"`

	Location Location `json:"location"`
}

// FieldDecl is a single field declared on a type. One FieldDecl is emitted
// per declarator ("int a, b;" yields two).
type FieldDecl struct {
	Name string `json:"name"`

	// Type is the declared type token with generics stripped.
	Type string `json:"type"`

	// Static is true for static fields. Calls inside a static field's
	// initializer attribute to the class's <clinit> pseudo-method.
	Static bool `json:"static,omitempty"`

	// HasInitializer is true when the declarator carries an "= expr" part.
	HasInitializer bool `json:"has_initializer,omitempty"`

	Location Location `json:"location"`
}

// InitBlock is a static or instance initializer block in a type body.
type InitBlock struct {
	Static   bool     `json:"static,omitempty"`
	Location Location `json:"location"`
}

// MethodDecl is a method or constructor declaration.
type MethodDecl struct {
	Name string `json:"name"`

	// IsConstructor distinguishes constructor declarations; constructors
	// carry the declaring type's simple name in Name.
	IsConstructor bool `json:"is_constructor,omitempty"`

	Params    []Param  `json:"params,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`

	// ReturnType is the declared return type token, empty for constructors.
	// It is a weak signal only; the pipeline never type-checks it.
	ReturnType string `json:"return_type,omitempty"`

	// Locals are local variable declarations in the body, used as the
	// innermost tier of receiver-type lookup.
	Locals []LocalVar `json:"locals,omitempty"`

	Location Location `json:"location"`
}

// TypeDecl is a class, interface, or enum declaration, including its
// nested type declarations.
type TypeDecl struct {
	Kind TypeKind `json:"kind"`
	Name string   `json:"name"`

	Modifiers []string `json:"modifiers,omitempty"`

	// Extends holds superclass name tokens: at most one for classes, any
	// number for interfaces. Tokens are as written (possibly qualified),
	// generics stripped.
	Extends []string `json:"extends,omitempty"`

	// Implements holds implemented interface name tokens.
	Implements []string `json:"implements,omitempty"`

	Fields  []FieldDecl  `json:"fields,omitempty"`
	Methods []MethodDecl `json:"methods,omitempty"`
	Blocks  []InitBlock  `json:"blocks,omitempty"`
	Nested  []*TypeDecl  `json:"nested,omitempty"`

	Location Location `json:"location"`
}

// ParseResult is the full declaration tree extracted from one file.
type ParseResult struct {
	// FilePath is the path relative to the project root, forward slashes.
	FilePath string `json:"file_path"`

	// Package is the declared package name, empty when the file has no
	// package declaration.
	Package string `json:"package,omitempty"`

	Imports []ImportDecl `json:"imports,omitempty"`
	Types   []*TypeDecl  `json:"types,omitempty"`

	// Calls are all call expressions in the file in source order.
	Calls []CallSite `json:"calls,omitempty"`

	// Errors holds non-fatal extraction notes (e.g. syntax errors the
	// grammar recovered from). A non-empty Errors slice does not make the
	// result unusable.
	Errors []string `json:"errors,omitempty"`

	// Hash is the SHA-256 of the source content, hex-encoded.
	Hash string `json:"hash,omitempty"`

	// ParsedAtMilli is the Unix timestamp in milliseconds of the parse.
	ParsedAtMilli int64 `json:"parsed_at_milli,omitempty"`
}

// Validate performs basic structural checks on the result.
//
// Outputs:
//
//	error - Non-nil if the result is structurally unusable (empty file
//	path, or a type declaration without a name).
func (r *ParseResult) Validate() error {
	if r == nil {
		return fmt.Errorf("parse result must not be nil")
	}
	if r.FilePath == "" {
		return fmt.Errorf("parse result has empty file path")
	}
	var check func(decls []*TypeDecl, depth int) error
	check = func(decls []*TypeDecl, depth int) error {
		if depth > MaxTypeNestingDepth {
			return fmt.Errorf("type nesting exceeds %d levels", MaxTypeNestingDepth)
		}
		for _, d := range decls {
			if d == nil {
				continue
			}
			if d.Name == "" {
				return fmt.Errorf("type declaration without a name at %s:%d", r.FilePath, d.Location.StartLine)
			}
			if err := check(d.Nested, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return check(r.Types, 0)
}
