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

// scopeResolver resolves a receiver token at a call site to the static
// type it denotes, using an ordered lookup chain.
//
// Description:
//
//	The chain, for a call site inside method M of class C:
//	  1. locals and parameters of M visible at the call line
//	  2. fields of C
//	  3. fields of C's resolved supertypes, most-derived first
//	     (interfaces contribute only constants)
//	  4. the same field tiers for each enclosing type outward, stopping
//	     at the first static nested boundary
//	  5. single-type imports of the file (the token names a type)
//	  6. other types declared in the same package
//	  7. wildcard imports, last resort: a name with no indexed match
//	     yields no candidate, not an error
//
//	Only project-internal types come back: a receiver whose type is
//	external or unindexed resolves to nothing, and the caller drops the
//	call, matching the closed-world limits of static analysis.
//
// Thread Safety:
//
//	Safe for concurrent use in phase 2: all lookups read the frozen
//	buildState indexes.
type scopeResolver struct {
	state *buildState
}

// receiverType resolves the receiver token of a qualified call.
//
// Inputs:
//   - fe: The file containing the call.
//   - owner: The owning method/initializer attribution record.
//   - recv: The receiver expression text as written.
//   - line: The call site's start line, bounding local visibility.
//
// Outputs:
//   - *typeEntry: The receiver's project-internal static type, or nil.
func (sc *scopeResolver) receiverType(fe *fileEntry, owner callOwner, recv string, line int) *typeEntry {
	recv = strings.TrimSpace(recv)

	// "this.field" receivers reduce to a field lookup on the own type.
	if rest, ok := strings.CutPrefix(recv, "this."); ok {
		if !isIdentifier(rest) {
			return nil
		}
		return sc.fieldTypeInChain(fe, owner.typeID, rest)
	}

	// Receiver expressions beyond plain or dotted names (chained calls,
	// indexing, literals) are not modeled.
	if !isDottedName(recv) {
		return nil
	}

	if strings.ContainsRune(recv, '.') {
		return sc.qualifiedTypeReceiver(fe, recv)
	}

	// Tier 1: locals and parameters of the owning method.
	if owner.method != nil {
		if token, ok := visibleLocalType(owner.method, recv, line); ok {
			return sc.tokenToType(fe, token)
		}
	}

	// Tiers 2-3: own fields, then inherited fields most-derived first.
	if te := sc.fieldTypeInChain(fe, owner.typeID, recv); te != nil {
		return te
	}

	// Tier 4: enclosing types outward until a static boundary.
	if cur, ok := sc.state.typeByID(owner.typeID); ok {
		for !cur.staticBoundary && cur.outerID != "" {
			outer, ok := sc.state.typeByID(cur.outerID)
			if !ok {
				break
			}
			if te := sc.fieldTypeInChain(fe, outer.id, recv); te != nil {
				return te
			}
			cur = outer
		}
	}

	// The token may itself name a type (static call).
	// Same-file types come before imports: nearest declaration wins.
	if id, ok := fe.localTypes[recv]; ok {
		te, _ := sc.state.typeByID(id)
		return te
	}

	// Tier 5: single-type imports.
	for _, imp := range fe.imports {
		if imp.Wildcard || imp.Static {
			continue
		}
		if _, simple := SplitQualifier(imp.Path); simple == recv {
			te, _ := sc.state.typeByID(imp.Path)
			return te // nil for unindexed imports: call is dropped
		}
	}

	// Tier 6: same-package types.
	if te, ok := sc.state.topLevelType(fe.pkg, recv); ok {
		return te
	}

	// Tier 7: wildcard imports over indexed packages.
	for _, imp := range fe.imports {
		if !imp.Wildcard {
			continue
		}
		if te, ok := sc.state.topLevelType(imp.Path, recv); ok {
			return te
		}
	}

	return nil
}

// qualifiedTypeReceiver handles dotted receivers that name a type, either
// fully qualified ("com.x.Util") or a visible outer type plus nested path
// ("Outer.Inner"). Dotted field chains are not modeled.
func (sc *scopeResolver) qualifiedTypeReceiver(fe *fileEntry, recv string) *typeEntry {
	if te, ok := sc.state.typeByID(recv); ok {
		return te
	}
	head, rest, _ := strings.Cut(recv, ".")
	if id, ok := fe.localTypes[head]; ok {
		if te, ok := sc.state.typeByID(id + "." + rest); ok {
			return te
		}
	}
	if outer, ok := sc.state.topLevelType(fe.pkg, head); ok {
		if te, ok := sc.state.typeByID(outer.id + "." + rest); ok {
			return te
		}
	}
	return nil
}

// fieldTypeInChain looks a field name up on a type and its resolved
// supertypes, most-derived first, and resolves the field's declared type
// token. Interfaces in the chain contribute only constants, which is
// every interface field.
func (sc *scopeResolver) fieldTypeInChain(fe *fileEntry, typeID, name string) *typeEntry {
	visited := make(map[string]struct{})
	queue := []string{typeID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}

		te, ok := sc.state.typeByID(id)
		if !ok {
			continue // external supertypes carry no fields
		}
		for _, f := range te.fields {
			if f.Name == name {
				return sc.tokenToType(fe, f.Type)
			}
		}
		queue = append(queue, te.supers...)
	}
	return nil
}

// tokenToType resolves a declared type token to a project-internal type.
// External and unindexed tokens yield nil.
func (sc *scopeResolver) tokenToType(fe *fileEntry, token string) *typeEntry {
	r := &resolver{state: sc.state}
	id, internal, err := r.resolveTypeToken(fe, token, false)
	if err != nil || !internal || id == "" {
		return nil
	}
	te, _ := sc.state.typeByID(id)
	return te
}

// visibleLocalType returns the declared type token of the local or
// parameter named name visible at the given line. Locals shadow
// parameters; among locals, the latest declaration at or before the call
// line wins.
func visibleLocalType(m *methodInfo, name string, line int) (string, bool) {
	bestLine := -1
	token := ""
	for _, l := range m.locals {
		if l.Name == name && l.Line <= line && l.Line > bestLine {
			bestLine = l.Line
			token = l.Type
		}
	}
	if bestLine >= 0 {
		return token, true
	}
	for _, p := range m.params {
		if p.Name == name {
			return p.Type, true
		}
	}
	return "", false
}

// isIdentifier reports whether s is a plain identifier.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// isDottedName reports whether s is a dot-separated chain of identifiers.
func isDottedName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if !isIdentifier(part) {
			return false
		}
	}
	return true
}
