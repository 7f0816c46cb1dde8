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
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/javagraph/internal/ast"
)

// methodInfo is the build-time record of one method or constructor,
// kept for call resolution after the entity table is frozen.
type methodInfo struct {
	entityID  string
	name      string
	isCtor    bool
	arity     int
	declOrder int
	params    []ast.Param
	locals    []ast.LocalVar
	loc       ast.Location
}

// typeEntry is the build-time record of one type declaration.
type typeEntry struct {
	id         string
	pkg        string
	simpleName string
	kind       ast.TypeKind
	filePath   string

	// outerID is the enclosing type's entry ID, empty for top-level types.
	outerID string

	// staticBoundary is true when enclosing-scope walks must stop at this
	// type: top-level types, static nested classes, and nested interfaces
	// and enums (implicitly static).
	staticBoundary bool

	fields  []ast.FieldDecl
	methods []methodInfo
	loc     ast.Location

	extendsTokens    []string
	implementsTokens []string

	// supers holds resolved supertype IDs in clause order (extends before
	// implements). Internal type IDs and external placeholder IDs mix here.
	// Written by the inheritance pass, read by the invocation pass.
	supers []string
}

// callOwner is one attribution range inside a file: the method,
// constructor, or initializer pseudo-method owning call sites in the range.
type callOwner struct {
	entityID string
	typeID   string
	loc      ast.Location

	// method is nil for initializer pseudo-method owners.
	method *methodInfo
}

// fileEntry is the build-time record of one successfully parsed file.
type fileEntry struct {
	path   string
	dir    string
	pkg    string
	fileID string

	imports []ast.ImportDecl
	calls   []ast.CallSite

	// localTypes maps every simple type name declared in this file
	// (including nested) to its entity ID.
	localTypes map[string]string

	// typeIDs lists the file's type entries in declaration order.
	typeIDs []string

	owners []callOwner
}

// buildState is the shared cross-file index built during phase 1 and read
// lock-free during phase 2.
type buildState struct {
	mu sync.Mutex

	files map[string]*fileEntry
	types map[string]*typeEntry

	// topLevel maps package name to simple type name to entity ID, for
	// same-package and wildcard-import resolution. Top-level types only.
	topLevel map[string]map[string]string

	// packageDirs collects, per package, the directories its files live
	// in; the lexicographically smallest becomes the CONTAINS parent at
	// the phase barrier, keeping the forest order-independent.
	packageDirs map[string]map[string]struct{}
}

func newBuildState() *buildState {
	return &buildState{
		files:       make(map[string]*fileEntry),
		types:       make(map[string]*typeEntry),
		topLevel:    make(map[string]map[string]string),
		packageDirs: make(map[string]map[string]struct{}),
	}
}

func (st *buildState) typeByID(id string) (*typeEntry, bool) {
	t, ok := st.types[id]
	return t, ok
}

// topLevelType resolves a simple name within a package to a type entry.
func (st *buildState) topLevelType(pkg, name string) (*typeEntry, bool) {
	id, ok := st.topLevel[pkg][name]
	if !ok {
		return nil, false
	}
	return st.types[id], true
}

// Indexer walks one file's declaration tree and publishes entities plus
// CONTAINS edges into the store, and build-time records into buildState.
//
// Description:
//
//	Indexer performs the first pipeline phase for a single file: directory
//	chain, package, file, type, method, constructor, and initializer
//	pseudo-method entities, with the containment edges joining them. It
//	never reads another file's results; cross-file resolution belongs to
//	the second phase.
//
// Thread Safety:
//
//	IndexFile is safe for concurrent use across distinct files. The store
//	and buildState handle their own locking.
type Indexer struct {
	store *Store
	state *buildState
}

func newIndexer(store *Store, state *buildState) *Indexer {
	return &Indexer{store: store, state: state}
}

// IndexFile publishes all entities declared in one parsed file.
//
// Inputs:
//   - result: The file's declaration tree. Must not be nil.
//
// Outputs:
//   - error: Non-nil only for store-level failures (frozen store); never
//     for content-level oddities, which are tolerated.
func (ix *Indexer) IndexFile(result *ast.ParseResult) error {
	if result == nil {
		return fmt.Errorf("parse result must not be nil")
	}

	relPath := strings.TrimPrefix(path.Clean(result.FilePath), "./")
	dir := path.Dir(relPath)

	dirID, err := ix.indexDirChain(dir)
	if err != nil {
		return err
	}

	pkg := result.Package
	if pkg == "" {
		pkg = SyntheticPackageName(dir)
	}

	// The package's CONTAINS parent is chosen at the phase barrier; here
	// the entity is published with no container and the directory recorded
	// as a candidate.
	if _, err := ix.store.AddEntity(Entity{
		ID:   pkg,
		Kind: EntityPackage,
		Name: pkg,
	}); err != nil {
		return err
	}

	fileID := relPath
	if _, err := ix.store.AddEntity(Entity{
		ID:          fileID,
		Kind:        EntityFile,
		Name:        path.Base(relPath),
		ContainerID: pkg,
	}); err != nil {
		return err
	}
	if _, err := ix.addContains(pkg, fileID); err != nil {
		return err
	}

	fe := &fileEntry{
		path:       relPath,
		dir:        DirID(dir),
		pkg:        pkg,
		fileID:     fileID,
		imports:    result.Imports,
		calls:      result.Calls,
		localTypes: make(map[string]string),
	}

	for _, decl := range result.Types {
		if err := ix.indexType(fe, decl, nil, fileID, pkg, result.Calls); err != nil {
			return err
		}
	}

	ix.state.mu.Lock()
	ix.state.files[relPath] = fe
	dirs, ok := ix.state.packageDirs[pkg]
	if !ok {
		dirs = make(map[string]struct{})
		ix.state.packageDirs[pkg] = dirs
	}
	dirs[dirID] = struct{}{}
	ix.state.mu.Unlock()

	return nil
}

// indexDirChain publishes the directory entities from the root down to
// dir, returning the deepest directory's entity ID.
func (ix *Indexer) indexDirChain(dir string) (string, error) {
	id := DirID(dir)
	if _, err := ix.store.AddEntity(Entity{
		ID:   RootDirID,
		Kind: EntityDirectory,
		Name: "/",
	}); err != nil {
		return "", err
	}
	if id == RootDirID {
		return id, nil
	}

	parts := strings.Split(strings.TrimPrefix(id, "dir:"), "/")
	parent := RootDirID
	current := ""
	for _, part := range parts {
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}
		dirEntityID := DirID(current)
		if _, err := ix.store.AddEntity(Entity{
			ID:          dirEntityID,
			Kind:        EntityDirectory,
			Name:        part,
			ContainerID: parent,
		}); err != nil {
			return "", err
		}
		if _, err := ix.addContains(parent, dirEntityID); err != nil {
			return "", err
		}
		parent = dirEntityID
	}
	return parent, nil
}

// indexType publishes one type declaration and recurses into members.
// nesting carries the simple-name path from the outermost type.
func (ix *Indexer) indexType(fe *fileEntry, decl *ast.TypeDecl, nesting []string, containerID, pkg string, fileCalls []ast.CallSite) error {
	names := append(append([]string(nil), nesting...), decl.Name)
	typeID := TypeID(pkg, names...)

	entity := Entity{
		ID:            typeID,
		Kind:          typeEntityKind(decl.Kind),
		Name:          decl.Name,
		DeclaringFile: fe.path,
		Modifiers:     decl.Modifiers,
		ContainerID:   containerID,
		Location:      decl.Location,
	}
	if _, err := ix.store.AddEntity(entity); err != nil {
		return err
	}
	if _, err := ix.addContains(containerID, typeID); err != nil {
		return err
	}

	te := &typeEntry{
		id:               typeID,
		pkg:              pkg,
		simpleName:       decl.Name,
		kind:             decl.Kind,
		filePath:         fe.path,
		staticBoundary:   len(nesting) == 0 || decl.Kind != ast.TypeKindClass || hasModifier(decl.Modifiers, "static"),
		loc:              decl.Location,
		fields:           decl.Fields,
		extendsTokens:    decl.Extends,
		implementsTokens: decl.Implements,
	}
	if len(nesting) > 0 {
		te.outerID = TypeID(pkg, nesting...)
	}

	declaredCtors := 0
	for order, m := range decl.Methods {
		paramTypes := make([]string, len(m.Params))
		for i, p := range m.Params {
			paramTypes[i] = p.Type
		}

		var memberID string
		var kind EntityKind
		if m.IsConstructor {
			memberID = CtorID(typeID, paramTypes)
			kind = EntityConstructor
			declaredCtors++
		} else {
			memberID = MethodID(typeID, m.Name, paramTypes)
			kind = EntityMethod
		}

		if _, err := ix.store.AddEntity(Entity{
			ID:            memberID,
			Kind:          kind,
			Name:          m.Name,
			DeclaringFile: fe.path,
			Modifiers:     m.Modifiers,
			ContainerID:   typeID,
			Location:      m.Location,
		}); err != nil {
			return err
		}
		if _, err := ix.addContains(typeID, memberID); err != nil {
			return err
		}

		mi := methodInfo{
			entityID:  memberID,
			name:      m.Name,
			isCtor:    m.IsConstructor,
			arity:     len(m.Params),
			declOrder: order,
			params:    m.Params,
			locals:    m.Locals,
			loc:       m.Location,
		}
		te.methods = append(te.methods, mi)
	}

	// Classes with no declared constructor get a synthetic default
	// constructor so `new T()` always has a target entity.
	if decl.Kind == ast.TypeKindClass && declaredCtors == 0 {
		defaultID := CtorID(typeID, nil)
		if _, err := ix.store.AddEntity(Entity{
			ID:            defaultID,
			Kind:          EntityConstructor,
			Name:          decl.Name,
			DeclaringFile: fe.path,
			ContainerID:   typeID,
		}); err != nil {
			return err
		}
		if _, err := ix.addContains(typeID, defaultID); err != nil {
			return err
		}
		te.methods = append(te.methods, methodInfo{
			entityID: defaultID,
			name:     decl.Name,
			isCtor:   true,
			arity:    0,
		})
	}

	if err := ix.indexInitializers(fe, decl, te, typeID, fileCalls); err != nil {
		return err
	}

	ix.state.mu.Lock()
	ix.state.types[typeID] = te
	if len(nesting) == 0 {
		byName, ok := ix.state.topLevel[pkg]
		if !ok {
			byName = make(map[string]string)
			ix.state.topLevel[pkg] = byName
		}
		byName[decl.Name] = typeID
	}
	ix.state.mu.Unlock()

	fe.localTypes[decl.Name] = typeID
	fe.typeIDs = append(fe.typeIDs, typeID)

	// Attribution ranges for declared methods and constructors.
	for i := range te.methods {
		mi := &te.methods[i]
		if mi.loc.Span() == 0 && mi.loc.StartLine == 0 {
			continue // synthetic default constructor has no range
		}
		fe.owners = append(fe.owners, callOwner{
			entityID: mi.entityID,
			typeID:   typeID,
			loc:      mi.loc,
			method:   mi,
		})
	}

	for _, nested := range decl.Nested {
		if err := ix.indexType(fe, nested, names, typeID, pkg, fileCalls); err != nil {
			return err
		}
	}
	return nil
}

// indexInitializers publishes the <clinit> and <init> pseudo-methods when
// a type has initializer blocks or field initializers containing calls,
// and records their attribution ranges.
func (ix *Indexer) indexInitializers(fe *fileEntry, decl *ast.TypeDecl, te *typeEntry, typeID string, fileCalls []ast.CallSite) error {
	var staticRanges, instanceRanges []ast.Location

	for _, b := range decl.Blocks {
		if b.Static {
			staticRanges = append(staticRanges, b.Location)
		} else {
			instanceRanges = append(instanceRanges, b.Location)
		}
	}
	for _, f := range decl.Fields {
		if !f.HasInitializer || !locationHasCall(f.Location, fileCalls) {
			continue
		}
		if f.Static {
			staticRanges = append(staticRanges, f.Location)
		} else {
			instanceRanges = append(instanceRanges, f.Location)
		}
	}

	publish := func(id, name string, mods []string, ranges []ast.Location) error {
		if len(ranges) == 0 {
			return nil
		}
		if _, err := ix.store.AddEntity(Entity{
			ID:            id,
			Kind:          EntityMethod,
			Name:          name,
			DeclaringFile: fe.path,
			Modifiers:     mods,
			ContainerID:   typeID,
		}); err != nil {
			return err
		}
		if _, err := ix.addContains(typeID, id); err != nil {
			return err
		}
		for _, r := range ranges {
			fe.owners = append(fe.owners, callOwner{entityID: id, typeID: typeID, loc: r})
		}
		return nil
	}

	if err := publish(StaticInitID(typeID), StaticInitName, []string{"static"}, staticRanges); err != nil {
		return err
	}
	return publish(InstanceInitID(typeID), InstanceInitName, nil, instanceRanges)
}

// hasModifier reports whether a modifier list contains mod.
func hasModifier(mods []string, mod string) bool {
	for _, m := range mods {
		if m == mod {
			return true
		}
	}
	return false
}

// locationHasCall reports whether any call site lies within loc.
func locationHasCall(loc ast.Location, calls []ast.CallSite) bool {
	for _, c := range calls {
		if loc.Contains(c.Location) {
			return true
		}
	}
	return false
}

func (ix *Indexer) addContains(parent, child string) (bool, error) {
	return ix.store.AddEdge(Relation{SourceID: parent, TargetID: child, Kind: RelationContains})
}

// finalizePackages runs at the phase barrier: each package's CONTAINS
// parent becomes the lexicographically smallest directory its files live
// in, which does not depend on file-processing order.
func finalizePackages(store *Store, state *buildState) error {
	pkgs := make([]string, 0, len(state.packageDirs))
	for pkg := range state.packageDirs {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	for _, pkg := range pkgs {
		dirs := make([]string, 0, len(state.packageDirs[pkg]))
		for d := range state.packageDirs[pkg] {
			dirs = append(dirs, d)
		}
		sort.Strings(dirs)
		parent := dirs[0]

		if _, err := store.AddEntity(Entity{ID: pkg, Kind: EntityPackage, Name: pkg, ContainerID: parent}); err != nil {
			return err
		}
		if _, err := store.AddEdge(Relation{SourceID: parent, TargetID: pkg, Kind: RelationContains}); err != nil {
			return err
		}
	}
	return nil
}
