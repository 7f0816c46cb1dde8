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
)

// inheritanceResolver resolves extends/implements clauses into INHERITS
// edges over the frozen entity table.
//
// Description:
//
//	Each name token on a type is resolved against same-file declarations,
//	same-package declarations, and the file's imports, in that order.
//	Unresolvable tokens become (or reuse) external placeholder entities.
//	Interfaces contribute INHERITS edges identically to superclasses; the
//	result is a DAG among resolvable entities with possibly multiple
//	parents. Resolved supertype IDs are also recorded on the type's build
//	entry in clause order, for the invocation pass to walk.
//
// Thread Safety:
//
//	resolveFile is safe for concurrent use across distinct files: it
//	writes only to the type entries declared in its own file.
type inheritanceResolver struct {
	res *resolver
}

// resolveFile emits INHERITS edges for every type declared in one file.
func (ir *inheritanceResolver) resolveFile(fe *fileEntry) error {
	for _, typeID := range fe.typeIDs {
		te, ok := ir.res.state.typeByID(typeID)
		if !ok {
			return fmt.Errorf("type entry missing for %s", typeID)
		}

		tokens := make([]string, 0, len(te.extendsTokens)+len(te.implementsTokens))
		tokens = append(tokens, te.extendsTokens...)
		tokens = append(tokens, te.implementsTokens...)

		for _, token := range tokens {
			targetID, internal, err := ir.res.resolveTypeToken(fe, token, true)
			if err != nil {
				return err
			}
			if targetID == "" {
				continue
			}
			if targetID == te.id {
				// A type cannot be its own supertype; shadowed-name artifact.
				slog.Debug("skipping self-referential supertype token",
					slog.String("type", te.id),
					slog.String("token", token))
				continue
			}

			if _, err := ir.res.store.AddEdge(Relation{
				SourceID: te.id,
				TargetID: targetID,
				Kind:     RelationInherits,
				Location: te.loc,
			}); err != nil {
				return err
			}
			te.supers = append(te.supers, targetID)

			if !internal {
				slog.Debug("supertype resolved to external placeholder",
					slog.String("type", te.id),
					slog.String("token", token),
					slog.String("placeholder", targetID))
			}
		}
	}
	return nil
}
