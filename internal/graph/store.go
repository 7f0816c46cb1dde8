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
	"sort"
	"sync"
)

// Store accumulates entities and relations during a build and serves
// read-only queries afterwards.
//
// Description:
//
//	Store is append-only. Entity insertion is idempotent by ID: re-emitting
//	an existing ID is a no-op merge, not an error. Edge insertion applies
//	kind-specific deduplication: CONTAINS and INHERITS are sets, IMPORTS is
//	deduplicated per (source, target) pair, and INVOKES is never
//	deduplicated so repeated calls accumulate repeated edges. Nothing is
//	ever removed.
//
// Thread Safety:
//
//	All Add methods are safe for concurrent use (single insertion mutex).
//	After Freeze, all read queries are lock-free and safe for concurrent
//	use; Add calls after Freeze return an error.
type Store struct {
	mu     sync.Mutex
	frozen bool

	entities map[string]*Entity
	edges    []Relation

	// edgeSet dedups CONTAINS/INHERITS/IMPORTS by source\x00target\x00kind.
	edgeSet map[string]struct{}

	// Secondary indexes, rebuilt incrementally on insert.
	byKind   map[EntityKind][]string
	outgoing map[string][]int
	incoming map[string][]int
}

// NewStore creates an empty Store in building state.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*Entity),
		edges:    make([]Relation, 0, 256),
		edgeSet:  make(map[string]struct{}),
		byKind:   make(map[EntityKind][]string),
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
	}
}

// AddEntity inserts an entity, merging idempotently by ID.
//
// Description:
//
//	If the ID is new the entity is stored as given. If the ID already
//	exists the call is a no-op merge: the existing entity is kept, except
//	that an empty ContainerID is filled in from the new value. This lets
//	phase-1 workers publish shared ancestors (directories, packages) in
//	any order.
//
// Outputs:
//   - *Entity: The stored entity (existing one on merge). Never nil on success.
//   - error: Non-nil if the store is frozen or the entity has an empty ID.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) AddEntity(e Entity) (*Entity, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("entity must have a non-empty ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return nil, fmt.Errorf("store is frozen")
	}

	if existing, ok := s.entities[e.ID]; ok {
		if existing.ContainerID == "" && e.ContainerID != "" {
			existing.ContainerID = e.ContainerID
		}
		return existing, nil
	}

	stored := e
	s.entities[e.ID] = &stored
	s.byKind[e.Kind] = append(s.byKind[e.Kind], e.ID)
	return &stored, nil
}

// AddEdge appends a relation, applying the kind's deduplication rule.
//
// Outputs:
//   - bool: True if the edge was stored, false if dropped as a duplicate.
//   - error: Non-nil if the store is frozen or either endpoint ID is empty.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) AddEdge(r Relation) (bool, error) {
	if r.SourceID == "" || r.TargetID == "" {
		return false, fmt.Errorf("edge endpoints must be non-empty (source=%q target=%q)", r.SourceID, r.TargetID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return false, fmt.Errorf("store is frozen")
	}

	if r.Kind != RelationInvokes {
		key := r.SourceID + "\x00" + r.TargetID + "\x00" + r.Kind.String()
		if _, dup := s.edgeSet[key]; dup {
			return false, nil
		}
		s.edgeSet[key] = struct{}{}
	}

	idx := len(s.edges)
	s.edges = append(s.edges, r)
	s.outgoing[r.SourceID] = append(s.outgoing[r.SourceID], idx)
	s.incoming[r.TargetID] = append(s.incoming[r.TargetID], idx)
	return true, nil
}

// Freeze transitions the store to read-only state. Idempotent.
func (s *Store) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// Frozen reports whether the store is read-only.
func (s *Store) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// GetEntity returns the entity with the given ID, if present.
func (s *Store) GetEntity(id string) (*Entity, bool) {
	if !s.Frozen() {
		s.mu.Lock()
		defer s.mu.Unlock()
		e, ok := s.entities[id]
		return e, ok
	}
	e, ok := s.entities[id]
	return e, ok
}

// EntitiesByKind returns all entities of a kind, sorted by ID.
//
// Thread Safety: Safe for concurrent use on a frozen store.
func (s *Store) EntitiesByKind(kind EntityKind) []*Entity {
	ids := s.byKind[kind]
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	out := make([]*Entity, 0, len(sorted))
	for _, id := range sorted {
		out = append(out, s.entities[id])
	}
	return out
}

// OutgoingEdges returns edges with the given source, filtered by kind.
//
// Thread Safety: Safe for concurrent use on a frozen store.
func (s *Store) OutgoingEdges(id string, kind RelationKind) []Relation {
	var out []Relation
	for _, idx := range s.outgoing[id] {
		if s.edges[idx].Kind == kind {
			out = append(out, s.edges[idx])
		}
	}
	return out
}

// IncomingEdges returns edges with the given target, filtered by kind.
//
// Thread Safety: Safe for concurrent use on a frozen store.
func (s *Store) IncomingEdges(id string, kind RelationKind) []Relation {
	var out []Relation
	for _, idx := range s.incoming[id] {
		if s.edges[idx].Kind == kind {
			out = append(out, s.edges[idx])
		}
	}
	return out
}

// ContainerOf returns the CONTAINS parent entity of id, if any.
func (s *Store) ContainerOf(id string) (*Entity, bool) {
	e, ok := s.entities[id]
	if !ok || e.ContainerID == "" {
		return nil, false
	}
	parent, ok := s.entities[e.ContainerID]
	return parent, ok
}

// Edges returns a copy of all relations in insertion order.
func (s *Store) Edges() []Relation {
	out := make([]Relation, len(s.edges))
	copy(out, s.edges)
	return out
}

// NumEntities returns the total entity count.
func (s *Store) NumEntities() int {
	return len(s.entities)
}

// NumEdges returns the total edge count.
func (s *Store) NumEdges() int {
	return len(s.edges)
}

// EntityCounts returns the entity count per kind. The result is
// order-independent: it depends only on the final entity set.
func (s *Store) EntityCounts() map[string]int {
	counts := make(map[string]int, len(s.byKind))
	for kind, ids := range s.byKind {
		if len(ids) > 0 {
			counts[kind.String()] = len(ids)
		}
	}
	return counts
}

// RelationCounts returns the edge count per relation kind.
func (s *Store) RelationCounts() map[string]int {
	counts := make(map[string]int, 4)
	for _, e := range s.edges {
		counts[e.Kind.String()]++
	}
	return counts
}
