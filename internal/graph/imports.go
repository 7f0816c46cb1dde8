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
	"github.com/AleutianAI/javagraph/internal/ast"
)

// importResolver resolves import declarations into IMPORTS edges.
//
// Description:
//
//	A single-type import resolves to the referenced project entity when it
//	is indexed, otherwise to a shared external placeholder under the
//	import's qualifier (standard-library namespaces are recognized by
//	prefix and marked on the placeholder package). A wildcard import
//	yields exactly one IMPORTS edge to the shared all-members placeholder
//	for the package, since enumerating every member of an unindexed
//	package is infeasible; the same wildcard also seeds the last tier of
//	receiver-type lookup. Edges are deduplicated per (file, target).
//
// Thread Safety: resolveFile is safe for concurrent use across files.
type importResolver struct {
	res *resolver
}

// resolveFile emits IMPORTS edges for every import on one file.
func (imr *importResolver) resolveFile(fe *fileEntry) error {
	for _, imp := range fe.imports {
		targetID, err := imr.resolveImport(imp)
		if err != nil {
			return err
		}
		if targetID == "" {
			continue
		}
		if _, err := imr.res.store.AddEdge(Relation{
			SourceID: fe.fileID,
			TargetID: targetID,
			Kind:     RelationImports,
			Location: imp.Location,
		}); err != nil {
			return err
		}
	}
	return nil
}

// resolveImport maps one import declaration to its target entity ID.
func (imr *importResolver) resolveImport(imp ast.ImportDecl) (string, error) {
	if imp.Wildcard {
		return imr.res.getOrCreatePlaceholder(imp.Path, "*")
	}

	// Project type imported by qualified name.
	if te, ok := imr.res.state.typeByID(imp.Path); ok {
		return te.id, nil
	}

	// A static member import targets its declaring type when indexed.
	if imp.Static {
		if qualifier, _ := SplitQualifier(imp.Path); qualifier != "" {
			if te, ok := imr.res.state.typeByID(qualifier); ok {
				return te.id, nil
			}
		}
	}

	qualifier, name := SplitQualifier(imp.Path)
	return imr.res.getOrCreatePlaceholder(qualifier, name)
}
