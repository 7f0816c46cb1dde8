// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds a typed dependency graph from parsed Java source.
//
// The pipeline runs in two strictly ordered phases. Phase 1 indexes every
// file independently into entities and containment edges. Phase 2, after
// the entity table is frozen, resolves inheritance clauses, imports, and
// call sites across files into INHERITS, IMPORTS, and INVOKES edges.
package graph

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/javagraph/internal/ast"
)

// EntityKind identifies the kind of a graph entity.
type EntityKind int

const (
	// EntityDirectory is a source directory.
	EntityDirectory EntityKind = iota

	// EntityPackage is a declared (or directory-derived) package.
	EntityPackage

	// EntityFile is a single source file.
	EntityFile

	// EntityClass is a class declaration.
	EntityClass

	// EntityInterface is an interface declaration.
	EntityInterface

	// EntityEnum is an enum declaration.
	EntityEnum

	// EntityMethod is a method declaration or an initializer pseudo-method.
	EntityMethod

	// EntityConstructor is a declared or synthetic default constructor.
	EntityConstructor

	// EntityExternal is a placeholder for a symbol outside the project.
	EntityExternal
)

// String returns the stable serialized name of the entity kind.
func (k EntityKind) String() string {
	switch k {
	case EntityDirectory:
		return "directory"
	case EntityPackage:
		return "package"
	case EntityFile:
		return "file"
	case EntityClass:
		return "class"
	case EntityInterface:
		return "interface"
	case EntityEnum:
		return "enum"
	case EntityMethod:
		return "method"
	case EntityConstructor:
		return "constructor"
	case EntityExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ParseEntityKind maps a serialized kind name back to its EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	for k := EntityDirectory; k <= EntityExternal; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", s)
}

// typeEntityKind maps a declaration kind to the matching entity kind.
func typeEntityKind(k ast.TypeKind) EntityKind {
	switch k {
	case ast.TypeKindInterface:
		return EntityInterface
	case ast.TypeKindEnum:
		return EntityEnum
	default:
		return EntityClass
	}
}

// RelationKind identifies the kind of a graph edge.
type RelationKind int

const (
	// RelationContains links a container entity to a member entity.
	// Set semantics: duplicates are dropped.
	RelationContains RelationKind = iota

	// RelationInherits links a type to a resolved or placeholder supertype.
	// Set semantics: duplicates are dropped.
	RelationInherits

	// RelationInvokes links a caller method to a callee. NOT deduplicated:
	// one edge per call-site resolution, so edge counts carry call frequency.
	RelationInvokes

	// RelationImports links a file to an imported entity or placeholder.
	// Deduplicated per (file, target) pair.
	RelationImports
)

// String returns the stable serialized name of the relation kind.
func (k RelationKind) String() string {
	switch k {
	case RelationContains:
		return "contains"
	case RelationInherits:
		return "inherits"
	case RelationInvokes:
		return "invokes"
	case RelationImports:
		return "imports"
	default:
		return "unknown"
	}
}

// ParseRelationKind maps a serialized kind name back to its RelationKind.
func ParseRelationKind(s string) (RelationKind, error) {
	for k := RelationContains; k <= RelationImports; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown relation kind %q", s)
}

// Entity is one node of the dependency graph.
//
// Description:
//
//	An Entity represents a structural program element. IDs are qualified
//	names, unique within a run and stable across runs for the same
//	declaration. Entities are immutable once published to the store.
//
// Thread Safety: Safe for concurrent reads after the store is frozen.
type Entity struct {
	// ID is the qualified name. See the ID constructors below for the
	// per-kind formats.
	ID string `json:"id"`

	Kind EntityKind `json:"kind_code"`

	// Name is the simple (unqualified) name.
	Name string `json:"name"`

	// DeclaringFile is the relative path of the declaring file. Empty for
	// directories, packages, and external placeholders.
	DeclaringFile string `json:"declaring_file,omitempty"`

	// Modifiers are the declared modifier keywords, source order.
	Modifiers []string `json:"modifiers,omitempty"`

	// ContainerID is the owning entity's ID, empty for roots.
	ContainerID string `json:"container_id,omitempty"`

	// Location is the declaration's source range. Zero for entities with
	// no single source location (directories, packages, synthetic members).
	Location ast.Location `json:"location,omitempty"`
}

// Relation is one directed, typed edge of the dependency graph.
type Relation struct {
	SourceID string       `json:"source_id"`
	TargetID string       `json:"target_id"`
	Kind     RelationKind `json:"kind_code"`

	// Location is where the relationship is expressed, when it has a
	// single source position (call site, import, extends clause).
	Location ast.Location `json:"location,omitempty"`
}

// RootDirID is the entity ID of the project root directory. Directory IDs
// carry a "dir:" prefix so a single-segment directory can never collide
// with a package of the same name.
const RootDirID = "dir:/"

// DefaultPackageName is the synthetic package name for files in the project
// root that carry no package declaration.
const DefaultPackageName = "(default)"

// DirID returns the directory entity ID for a relative directory path.
func DirID(relDir string) string {
	relDir = strings.Trim(relDir, "/")
	if relDir == "" || relDir == "." {
		return RootDirID
	}
	return "dir:" + relDir
}

// SyntheticPackageName derives a package name for files without a package
// declaration, grouping them by directory.
func SyntheticPackageName(relDir string) string {
	relDir = strings.Trim(relDir, "/")
	if relDir == "" || relDir == "." {
		return DefaultPackageName
	}
	return strings.ReplaceAll(relDir, "/", ".")
}

// TypeID returns the entity ID for a type: the package name joined with
// the dot-separated nesting path ("pkg.Outer.Inner").
func TypeID(pkg string, nesting ...string) string {
	return pkg + "." + strings.Join(nesting, ".")
}

// MethodID returns the entity ID for a method. Parameter type tokens
// disambiguate overloads: "pkg.C.run(String,int)".
func MethodID(typeID, name string, paramTypes []string) string {
	return typeID + "." + name + "(" + strings.Join(paramTypes, ",") + ")"
}

// CtorID returns the entity ID for a constructor, declared or synthetic:
// "pkg.C.<init>(String)". A synthetic default constructor has no params.
func CtorID(typeID string, paramTypes []string) string {
	return typeID + ".<init>(" + strings.Join(paramTypes, ",") + ")"
}

// Initializer pseudo-method name suffixes. One of each at most per type;
// multiple source blocks merge into the single pseudo-method. The IDs carry
// no parens, so they can never collide with a constructor ID.
const (
	StaticInitName   = "<clinit>"
	InstanceInitName = "<init>"
)

// StaticInitID returns the ID of a type's static-initializer pseudo-method.
func StaticInitID(typeID string) string {
	return typeID + "." + StaticInitName
}

// InstanceInitID returns the ID of a type's instance-initializer
// pseudo-method.
func InstanceInitID(typeID string) string {
	return typeID + "." + InstanceInitName
}

// ExternalPackageID returns the ID of the synthetic package placeholder for
// an external qualifier ("external:java.util"). An empty qualifier yields
// the generic unresolved-external package ("external:").
func ExternalPackageID(qualifier string) string {
	return "external:" + qualifier
}

// ExternalMemberID returns the ID of an external member placeholder
// ("external:java.util:List").
func ExternalMemberID(qualifier, name string) string {
	return "external:" + qualifier + ":" + name
}

// ExternalWildcardID returns the ID of the all-members placeholder a
// wildcard import targets ("external:java.util:*").
func ExternalWildcardID(pkg string) string {
	return ExternalMemberID(pkg, "*")
}

// SplitQualifier splits a dotted path into qualifier and simple name.
// "java.util.List" yields ("java.util", "List"); "List" yields ("", "List").
func SplitQualifier(path string) (string, string) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
