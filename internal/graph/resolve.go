// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"strings"
)

// stdlibPrefixes are the recognized built-in namespace prefixes of the
// analyzed language. Imports under these resolve to standard-library
// placeholders rather than generic unresolved externals.
var stdlibPrefixes = []string{"java.", "javax.", "jakarta.", "sun.", "com.sun."}

// isStdlibPath reports whether a dotted path belongs to a recognized
// standard-library namespace.
func isStdlibPath(path string) bool {
	for _, p := range stdlibPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// resolver resolves type name tokens against the frozen phase-1 index and
// creates external placeholder entities for everything it cannot match.
//
// Thread Safety:
//
//	Safe for concurrent use during phase 2: the buildState indexes are
//	read-only at that point and the store serializes placeholder inserts.
type resolver struct {
	store *Store
	state *buildState
}

// getOrCreatePlaceholder returns the external placeholder entity for a
// member under a qualifier, creating it (and its synthetic package) on
// first use. Placeholders are shared: repeated requests for the same
// qualifier and name converge on one entity.
//
// Outputs:
//   - string: The placeholder's entity ID.
//   - error: Non-nil only for store-level failures.
func (r *resolver) getOrCreatePlaceholder(qualifier, name string) (string, error) {
	pkgID := ExternalPackageID(qualifier)

	pkgName := qualifier
	if pkgName == "" {
		pkgName = "(unresolved)"
	}
	var pkgMods []string
	if isStdlibPath(qualifier + ".") {
		pkgMods = []string{"stdlib"}
	}
	if _, err := r.store.AddEntity(Entity{
		ID:        pkgID,
		Kind:      EntityExternal,
		Name:      pkgName,
		Modifiers: pkgMods,
	}); err != nil {
		return "", err
	}

	memberID := ExternalMemberID(qualifier, name)
	if _, err := r.store.AddEntity(Entity{
		ID:          memberID,
		Kind:        EntityExternal,
		Name:        name,
		ContainerID: pkgID,
	}); err != nil {
		return "", err
	}
	if _, err := r.store.AddEdge(Relation{SourceID: pkgID, TargetID: memberID, Kind: RelationContains}); err != nil {
		return "", err
	}
	return memberID, nil
}

// resolveTypeToken resolves a type name token as written in source against
// project declarations, in order: same-file declarations, same-package
// declarations, then the file's imports (single-type before wildcard).
//
// Inputs:
//   - fe: The file the token appears in. Must not be nil.
//   - token: The name token, possibly qualified, generics already stripped.
//   - create: When true, an unresolvable token yields an external
//     placeholder; when false it yields ("", false, nil).
//
// Outputs:
//   - string: Entity ID of the resolved type or placeholder. Empty only
//     when create is false and the token is unresolvable.
//   - bool: True when the ID refers to a project-internal type.
//   - error: Non-nil only for store-level failures.
func (r *resolver) resolveTypeToken(fe *fileEntry, token string, create bool) (string, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, "[]() ") {
		return r.fallbackPlaceholder(token, create)
	}

	if strings.ContainsRune(token, '.') {
		return r.resolveQualifiedToken(fe, token, create)
	}

	// Same-file declarations, including nested types.
	if id, ok := fe.localTypes[token]; ok {
		return id, true, nil
	}

	// Same-package top-level declarations.
	if te, ok := r.state.topLevelType(fe.pkg, token); ok {
		return te.id, true, nil
	}

	// Single-type imports.
	for _, imp := range fe.imports {
		if imp.Wildcard || imp.Static {
			continue
		}
		_, simple := SplitQualifier(imp.Path)
		if simple != token {
			continue
		}
		if te, ok := r.state.typeByID(imp.Path); ok {
			return te.id, true, nil
		}
		if !create {
			return "", false, nil
		}
		qualifier, name := SplitQualifier(imp.Path)
		id, err := r.getOrCreatePlaceholder(qualifier, name)
		return id, false, err
	}

	// Wildcard imports over indexed packages.
	for _, imp := range fe.imports {
		if !imp.Wildcard {
			continue
		}
		if te, ok := r.state.topLevelType(imp.Path, token); ok {
			return te.id, true, nil
		}
	}

	return r.fallbackPlaceholder(token, create)
}

// resolveQualifiedToken handles dotted tokens: an exact qualified match,
// a visible type followed by a nested path, or an external placeholder.
func (r *resolver) resolveQualifiedToken(fe *fileEntry, token string, create bool) (string, bool, error) {
	if te, ok := r.state.typeByID(token); ok {
		return te.id, true, nil
	}

	// "Outer.Inner" where Outer is visible: resolve the head, then walk
	// the nested path under it.
	head, rest, _ := strings.Cut(token, ".")
	headID, internal, err := r.resolveTypeToken(fe, head, false)
	if err != nil {
		return "", false, err
	}
	if internal && headID != "" {
		if te, ok := r.state.typeByID(headID + "." + rest); ok {
			return te.id, true, nil
		}
	}

	if !create {
		return "", false, nil
	}
	qualifier, name := SplitQualifier(token)
	id, err := r.getOrCreatePlaceholder(qualifier, name)
	return id, false, err
}

func (r *resolver) fallbackPlaceholder(token string, create bool) (string, bool, error) {
	if !create || token == "" {
		return "", false, nil
	}
	id, err := r.getOrCreatePlaceholder("", token)
	return id, false, err
}
