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
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/AleutianAI/javagraph/internal/ast"
)

// callStats aggregates invocation-pass counters across workers.
type callStats struct {
	resolved atomic.Int64 // call sites that produced at least one edge
	dropped  atomic.Int64 // call sites producing no edge
	fanOut   atomic.Int64 // call sites producing more than one edge
	edges    atomic.Int64 // INVOKES edges emitted
}

// invocationResolver turns call sites into INVOKES edges.
//
// Description:
//
//	Every call site is first attributed to its owning method, constructor,
//	or initializer pseudo-method by source-range containment (smallest
//	enclosing range wins). The callee is then resolved per call kind:
//
//	  - unqualified / this-qualified: rooted at the enclosing class,
//	    walking resolved supertypes most-derived first; the first type
//	    level declaring the name supplies the candidates. Exact-arity
//	    overloads are preferred; otherwise every overload at that level
//	    gets an edge (fan-out). This resolves to the statically nearest
//	    declaration, not a dynamically overriding subclass.
//	  - qualified: the receiver's static type comes from scopeResolver;
//	    an unresolvable receiver drops the call silently.
//	  - super-qualified: rooted at the first resolved internal supertype.
//	  - constructor: the created type resolves like imports/inheritance;
//	    constructors are matched by arity on the type itself, never
//	    inherited; a class declaring none targets its synthetic default
//	    constructor. Unresolvable types get one edge to their placeholder.
//
//	Arity ties fan out in declaration order.
//
// Thread Safety: resolveFile is safe for concurrent use across files.
type invocationResolver struct {
	res   *resolver
	scope *scopeResolver
	stats *callStats
}

// resolveFile emits INVOKES edges for every call site in one file.
func (iv *invocationResolver) resolveFile(fe *fileEntry) error {
	for _, call := range fe.calls {
		owner, ok := attributeCall(fe, call.Location)
		if !ok {
			// Calls outside any executable member (annotation arguments,
			// stray top-level fragments) have no owner.
			iv.stats.dropped.Add(1)
			continue
		}
		if err := iv.resolveCall(fe, owner, call); err != nil {
			return err
		}
	}
	return nil
}

// resolveCall resolves a single call site and emits its edges.
func (iv *invocationResolver) resolveCall(fe *fileEntry, owner callOwner, call ast.CallSite) error {
	var candidates []string

	switch call.Kind {
	case ast.CallUnqualified, ast.CallThis:
		candidates = iv.methodCandidates(owner.typeID, call.Name, call.ArgCount)

	case ast.CallSuper:
		if superID, ok := iv.firstInternalSuper(owner.typeID); ok {
			candidates = iv.methodCandidates(superID, call.Name, call.ArgCount)
		}

	case ast.CallQualified:
		recv := iv.scope.receiverType(fe, owner, call.Receiver, call.Location.StartLine)
		if recv == nil {
			iv.stats.dropped.Add(1)
			slog.Debug("dropping call through unresolved receiver",
				slog.String("file", fe.path),
				slog.String("receiver", call.Receiver),
				slog.String("name", call.Name),
				slog.Int("line", call.Location.StartLine))
			return nil
		}
		candidates = iv.methodCandidates(recv.id, call.Name, call.ArgCount)

	case ast.CallConstructor:
		var err error
		candidates, err = iv.constructorCandidates(fe, call)
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("unhandled call kind %v at %s:%d", call.Kind, fe.path, call.Location.StartLine)
	}

	if len(candidates) == 0 {
		iv.stats.dropped.Add(1)
		return nil
	}

	for _, target := range candidates {
		if _, err := iv.res.store.AddEdge(Relation{
			SourceID: owner.entityID,
			TargetID: target,
			Kind:     RelationInvokes,
			Location: call.Location,
		}); err != nil {
			return err
		}
	}
	iv.stats.resolved.Add(1)
	iv.stats.edges.Add(int64(len(candidates)))
	if len(candidates) > 1 {
		iv.stats.fanOut.Add(1)
	}
	return nil
}

// methodCandidates walks the type and its resolved supertypes,
// most-derived first, and returns the candidate method IDs from the first
// type level declaring the name. Exact-arity matches win; failing that,
// every overload at that level is a candidate, in declaration order.
func (iv *invocationResolver) methodCandidates(rootID, name string, arity int) []string {
	visited := make(map[string]struct{})
	queue := []string{rootID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}

		te, ok := iv.res.state.typeByID(id)
		if !ok {
			continue // external supertypes declare nothing we can see
		}

		var level, exact []string
		for _, m := range te.methods {
			if m.isCtor || m.name != name {
				continue
			}
			level = append(level, m.entityID)
			if m.arity == arity {
				exact = append(exact, m.entityID)
			}
		}
		if len(level) > 0 {
			if len(exact) > 0 {
				return exact
			}
			return level
		}

		queue = append(queue, te.supers...)
	}
	return nil
}

// constructorCandidates resolves a `new T(args)` call site.
func (iv *invocationResolver) constructorCandidates(fe *fileEntry, call ast.CallSite) ([]string, error) {
	targetID, internal, err := iv.res.resolveTypeToken(fe, call.Name, true)
	if err != nil {
		return nil, err
	}
	if targetID == "" {
		return nil, nil
	}
	if !internal {
		// Instantiation of an unindexed type: one edge to the placeholder.
		return []string{targetID}, nil
	}

	te, ok := iv.res.state.typeByID(targetID)
	if !ok {
		return nil, fmt.Errorf("type entry missing for %s", targetID)
	}

	var ctors, exact []string
	for _, m := range te.methods {
		if !m.isCtor {
			continue
		}
		ctors = append(ctors, m.entityID)
		if m.arity == call.ArgCount {
			exact = append(exact, m.entityID)
		}
	}
	if len(exact) > 0 {
		return exact, nil
	}
	// No arity match: fan out over all declared constructors, which for a
	// class declaring none is exactly the synthetic default constructor.
	return ctors, nil
}

// firstInternalSuper returns the first resolved project-internal
// supertype of a type, the root for super-qualified calls.
func (iv *invocationResolver) firstInternalSuper(typeID string) (string, bool) {
	te, ok := iv.res.state.typeByID(typeID)
	if !ok {
		return "", false
	}
	for _, s := range te.supers {
		if _, internal := iv.res.state.typeByID(s); internal {
			return s, true
		}
	}
	return "", false
}

// attributeCall finds the owning member for a call site: the smallest
// attribution range containing it.
func attributeCall(fe *fileEntry, loc ast.Location) (callOwner, bool) {
	best := -1
	for i, o := range fe.owners {
		if !o.loc.Contains(loc) {
			continue
		}
		if best < 0 || o.loc.Narrower(fe.owners[best].loc) {
			best = i
		}
	}
	if best < 0 {
		return callOwner{}, false
	}
	return fe.owners[best], true
}
