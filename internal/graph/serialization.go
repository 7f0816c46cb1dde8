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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// SchemaVersion is the version of the serialization schema. Increment on
// breaking format changes.
const SchemaVersion = "1.0"

// SerializableGraph is the JSON representation of a frozen store.
//
// Description:
//
//	Entities are sorted by ID and edges by (source, target, kind,
//	location), so the output is deterministic and identical re-runs
//	produce byte-identical exports, enabling reliable diffing and content
//	hashing.
type SerializableGraph struct {
	SchemaVersion string `json:"schema_version"`

	// ProjectRoot is the analyzed root directory as given by the caller.
	ProjectRoot string `json:"project_root,omitempty"`

	// BuiltAtMilli is the Unix timestamp in milliseconds of the export.
	BuiltAtMilli int64 `json:"built_at_milli"`

	// GraphHash is a deterministic hash of the graph structure,
	// independent of BuiltAtMilli and ProjectRoot.
	GraphHash string `json:"graph_hash"`

	Entities []SerializableEntity `json:"entities"`
	Edges    []SerializableEdge   `json:"edges"`
}

// SerializableEntity pairs an entity with its human-readable kind name.
type SerializableEntity struct {
	Entity

	// KindName is the human-readable kind ("class", "method", ...);
	// Entity.Kind carries the code for exact reconstruction.
	KindName string `json:"kind"`
}

// SerializableEdge pairs a relation with its human-readable kind name.
type SerializableEdge struct {
	Relation

	KindName string `json:"kind"`
}

// ToSerializable converts a frozen store to its JSON representation.
//
// Inputs:
//   - projectRoot: Recorded verbatim in the export. May be empty.
//
// Outputs:
//   - *SerializableGraph: Never nil.
//
// Thread Safety: Safe for concurrent use on frozen stores.
func (s *Store) ToSerializable(projectRoot string) *SerializableGraph {
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entities := make([]SerializableEntity, 0, len(ids))
	for _, id := range ids {
		e := s.entities[id]
		entities = append(entities, SerializableEntity{Entity: *e, KindName: e.Kind.String()})
	}

	edges := make([]SerializableEdge, 0, len(s.edges))
	for _, r := range s.edges {
		edges = append(edges, SerializableEdge{Relation: r, KindName: r.Kind.String()})
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Location.StartLine != b.Location.StartLine {
			return a.Location.StartLine < b.Location.StartLine
		}
		return a.Location.StartCol < b.Location.StartCol
	})

	sg := &SerializableGraph{
		SchemaVersion: SchemaVersion,
		ProjectRoot:   projectRoot,
		BuiltAtMilli:  time.Now().UnixMilli(),
		Entities:      entities,
		Edges:         edges,
	}
	sg.GraphHash = sg.hash()
	return sg
}

// hash computes the deterministic structural hash over sorted entities
// and edges.
func (sg *SerializableGraph) hash() string {
	h := sha256.New()
	for _, e := range sg.Entities {
		fmt.Fprintf(h, "n|%s|%s|%s\n", e.ID, e.KindName, e.ContainerID)
	}
	for _, r := range sg.Edges {
		fmt.Fprintf(h, "e|%s|%s|%s|%d|%d\n", r.SourceID, r.TargetID, r.KindName, r.Location.StartLine, r.Location.StartCol)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// dotShapes maps entity kinds to Graphviz node shapes.
var dotShapes = map[EntityKind]string{
	EntityDirectory:   "folder",
	EntityPackage:     "tab",
	EntityFile:        "note",
	EntityClass:       "box",
	EntityInterface:   "octagon",
	EntityEnum:        "component",
	EntityMethod:      "ellipse",
	EntityConstructor: "ellipse",
	EntityExternal:    "box3d",
}

// dotStyles maps relation kinds to Graphviz edge attributes.
var dotStyles = map[RelationKind]string{
	RelationContains: `style=dotted color=gray`,
	RelationInherits: `color=blue arrowhead=empty`,
	RelationInvokes:  `color=black`,
	RelationImports:  `style=dashed color=darkgreen`,
}

// ExportDOT writes the graph in Graphviz DOT format.
//
// Description:
//
//	Nodes and edges appear in the same deterministic order as the JSON
//	export. Node labels are simple names; IDs go into tooltips so large
//	graphs stay readable.
//
// Thread Safety: Safe for concurrent use on frozen stores.
func (s *Store) ExportDOT(w io.Writer) error {
	sg := s.ToSerializable("")

	if _, err := fmt.Fprintln(w, "digraph dependencies {"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "  rankdir=LR;"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "  node [fontsize=10];"); err != nil {
		return err
	}

	for _, e := range sg.Entities {
		shape := dotShapes[e.Kind]
		if shape == "" {
			shape = "box"
		}
		if _, err := fmt.Fprintf(w, "  %s [label=%s shape=%s tooltip=%s];\n",
			dotQuote(e.ID), dotQuote(e.Name), shape, dotQuote(e.ID)); err != nil {
			return err
		}
	}

	for _, r := range sg.Edges {
		if _, err := fmt.Fprintf(w, "  %s -> %s [%s label=%s];\n",
			dotQuote(r.SourceID), dotQuote(r.TargetID), dotStyles[r.Kind], dotQuote(r.KindName)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// dotQuote renders a string as a quoted DOT identifier.
func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// RenderTree writes the containment forest as an indented text tree,
// directories first, children sorted by kind then name.
//
// Thread Safety: Safe for concurrent use on frozen stores.
func (s *Store) RenderTree(w io.Writer) error {
	children := make(map[string][]*Entity)
	var roots []*Entity
	for _, e := range s.entities {
		if e.ContainerID == "" {
			roots = append(roots, e)
		} else {
			children[e.ContainerID] = append(children[e.ContainerID], e)
		}
	}

	order := func(list []*Entity) {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Kind != list[j].Kind {
				return list[i].Kind < list[j].Kind
			}
			return list[i].ID < list[j].ID
		})
	}
	order(roots)
	for _, list := range children {
		order(list)
	}

	var render func(e *Entity, depth int) error
	render = func(e *Entity, depth int) error {
		if _, err := fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), e.Kind.String(), e.Name); err != nil {
			return err
		}
		for _, c := range children[e.ID] {
			if err := render(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := render(root, 0); err != nil {
			return err
		}
	}
	return nil
}
