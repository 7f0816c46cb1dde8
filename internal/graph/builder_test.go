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
	"context"
	"sort"
	"testing"

	"github.com/AleutianAI/javagraph/internal/ast"
)

// build runs the full pipeline over in-memory sources, path -> content.
func build(t *testing.T, sources map[string]string) *BuildResult {
	t.Helper()
	files := make([]SourceFile, 0, len(sources))
	for p, src := range sources {
		files = append(files, SourceFile{Path: p, Content: []byte(src)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	result, err := NewBuilder(WithWorkerCount(2)).Build(context.Background(), files)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return result
}

func requireEntity(t *testing.T, s *Store, id string, kind EntityKind) *Entity {
	t.Helper()
	e, ok := s.GetEntity(id)
	if !ok {
		t.Fatalf("entity %q not found", id)
	}
	if e.Kind != kind {
		t.Fatalf("entity %q kind = %v, want %v", id, e.Kind, kind)
	}
	return e
}

func invokesBetween(s *Store, from, to string) int {
	n := 0
	for _, e := range s.OutgoingEdges(from, RelationInvokes) {
		if e.TargetID == to {
			n++
		}
	}
	return n
}

func TestOverrideResolvesToReceiverType(t *testing.T) {
	// A.foo calls bar(): the edge must target A.bar, not the override in
	// B, because resolution roots at the receiver's static type.
	result := build(t, map[string]string{
		"A.java": `package p; class A { void foo(){ bar(); } void bar(){} }`,
		"B.java": `package p; class B extends A { void bar(){} }`,
	})
	s := result.Store

	requireEntity(t, s, "A.java", EntityFile)
	requireEntity(t, s, "B.java", EntityFile)
	requireEntity(t, s, "p", EntityPackage)
	requireEntity(t, s, "p.A", EntityClass)
	requireEntity(t, s, "p.B", EntityClass)
	requireEntity(t, s, "p.A.foo()", EntityMethod)
	requireEntity(t, s, "p.A.bar()", EntityMethod)
	requireEntity(t, s, "p.B.bar()", EntityMethod)

	inherits := s.OutgoingEdges("p.B", RelationInherits)
	if len(inherits) != 1 || inherits[0].TargetID != "p.A" {
		t.Errorf("B inherits = %+v, want single edge to p.A", inherits)
	}

	if n := invokesBetween(s, "p.A.foo()", "p.A.bar()"); n != 1 {
		t.Errorf("A.foo -> A.bar invokes = %d, want 1", n)
	}
	if n := len(s.IncomingEdges("p.B.bar()", RelationInvokes)); n != 0 {
		t.Errorf("B.bar incoming invokes = %d, want 0", n)
	}
}

func TestSyntheticDefaultConstructorTarget(t *testing.T) {
	result := build(t, map[string]string{
		"Foo.java":  `package p; class Foo {}`,
		"Main.java": `package p; class Main { void run(){ new Foo(); } }`,
	})
	s := result.Store

	ctor := requireEntity(t, s, "p.Foo.<init>()", EntityConstructor)
	if ctor.ContainerID != "p.Foo" {
		t.Errorf("default ctor container = %q, want p.Foo", ctor.ContainerID)
	}
	if n := invokesBetween(s, "p.Main.run()", "p.Foo.<init>()"); n != 1 {
		t.Errorf("run -> Foo.<init>() invokes = %d, want 1", n)
	}
}

func TestUnresolvedReceiverCallDropped(t *testing.T) {
	result := build(t, map[string]string{
		"A.java": `package p;
import com.vendor.Widget;
class A { void run(Widget w){ w.render(); } }`,
	})
	s := result.Store

	if n := len(s.OutgoingEdges("p.A.run(Widget)", RelationInvokes)); n != 0 {
		t.Errorf("invokes from run = %d, want 0 (receiver type is external)", n)
	}
	if result.Stats.CallsDropped != 1 {
		t.Errorf("calls dropped = %d, want 1", result.Stats.CallsDropped)
	}
	if len(result.FileErrors) != 0 {
		t.Errorf("file errors = %+v, want none", result.FileErrors)
	}
}

func TestContainmentIsForest(t *testing.T) {
	result := build(t, map[string]string{
		"src/a/A.java": `package a; class A { void f(){} static class N { void g(){} } }`,
		"src/b/B.java": `package b; import a.A; import java.util.*; class B extends A {}`,
		"Root.java":    `class Root {}`,
	})
	s := result.Store

	for _, kind := range []EntityKind{
		EntityDirectory, EntityPackage, EntityFile, EntityClass,
		EntityInterface, EntityEnum, EntityMethod, EntityConstructor, EntityExternal,
	} {
		for _, e := range s.EntitiesByKind(kind) {
			in := len(s.IncomingEdges(e.ID, RelationContains))
			if e.ContainerID == "" {
				if in != 0 {
					t.Errorf("root %q has %d CONTAINS parents, want 0", e.ID, in)
				}
				continue
			}
			if in != 1 {
				t.Errorf("entity %q has %d CONTAINS parents, want exactly 1", e.ID, in)
			}
		}
	}

	// Roots are the top directory and external packages only.
	root := requireEntity(t, s, RootDirID, EntityDirectory)
	if root.ContainerID != "" {
		t.Errorf("root directory has container %q", root.ContainerID)
	}
}

func TestNoInheritanceCycles(t *testing.T) {
	result := build(t, map[string]string{
		"I0.java": `package p; interface I0 {}`,
		"I1.java": `package p; interface I1 extends I0 {}`,
		"I2.java": `package p; interface I2 extends I0 {}`,
		"C.java":  `package p; class C implements I1, I2 {}`,
		"D.java":  `package p; class D extends C implements I1 {}`,
	})
	s := result.Store

	var walk func(start, cur string, visited map[string]bool) bool
	walk = func(start, cur string, visited map[string]bool) bool {
		for _, e := range s.OutgoingEdges(cur, RelationInherits) {
			if e.TargetID == start {
				return true
			}
			if visited[e.TargetID] {
				continue
			}
			visited[e.TargetID] = true
			if walk(start, e.TargetID, visited) {
				return true
			}
		}
		return false
	}

	for _, kind := range []EntityKind{EntityClass, EntityInterface, EntityEnum} {
		for _, e := range s.EntitiesByKind(kind) {
			if walk(e.ID, e.ID, map[string]bool{}) {
				t.Errorf("inheritance cycle through %q", e.ID)
			}
		}
	}

	// D has multiple parents: C plus I1.
	if n := len(s.OutgoingEdges("p.D", RelationInherits)); n != 2 {
		t.Errorf("D inherits edge count = %d, want 2", n)
	}
}

func TestIdempotentRerun(t *testing.T) {
	sources := map[string]string{
		"A.java": `package p; import java.util.List; class A { int x = f(); int f(){ return 1; } }`,
		"B.java": `package p; class B extends A { void g(){ f(); f(); new A(); } }`,
	}

	first := build(t, sources)
	second := build(t, sources)

	h1 := first.Store.ToSerializable("").GraphHash
	h2 := second.Store.ToSerializable("").GraphHash
	if h1 != h2 {
		t.Errorf("graph hashes differ across identical runs: %s vs %s", h1, h2)
	}
	if first.Stats.Entities != second.Stats.Entities || first.Stats.Edges != second.Stats.Edges {
		t.Errorf("stats differ: %+v vs %+v", first.Stats, second.Stats)
	}
}

func TestCallCountMonotonicity(t *testing.T) {
	base := map[string]string{
		"A.java": `package p; class A { void f(){ g(); } void g(){} }`,
	}
	more := map[string]string{
		"A.java": `package p; class A { void f(){ g(); g(); } void g(){} }`,
	}

	before := build(t, base)
	after := build(t, more)

	nBefore := len(before.Store.IncomingEdges("p.A.g()", RelationInvokes))
	nAfter := len(after.Store.IncomingEdges("p.A.g()", RelationInvokes))
	if nBefore != 1 || nAfter != 2 {
		t.Errorf("invokes into g: before=%d after=%d, want 1 then 2", nBefore, nAfter)
	}

	// No other count decreased.
	bc := before.Store.RelationCounts()
	ac := after.Store.RelationCounts()
	for kind, n := range bc {
		if ac[kind] < n {
			t.Errorf("relation %q count decreased: %d -> %d", kind, n, ac[kind])
		}
	}
}

func TestWildcardImportIsolation(t *testing.T) {
	result := build(t, map[string]string{
		"A.java": `package p; import java.util.*; class A {}`,
		"B.java": `package p; import java.util.*; class B {}`,
	})
	s := result.Store

	placeholder := requireEntity(t, s, "external:java.util:*", EntityExternal)
	if placeholder.ContainerID != "external:java.util" {
		t.Errorf("wildcard placeholder container = %q", placeholder.ContainerID)
	}

	in := s.IncomingEdges(placeholder.ID, RelationImports)
	if len(in) != 2 {
		t.Fatalf("imports into wildcard placeholder = %d, want 2 (one per file)", len(in))
	}
	if in[0].SourceID == in[1].SourceID {
		t.Errorf("both import edges come from %q, want distinct files", in[0].SourceID)
	}

	// One shared placeholder entity, not one per importing file.
	count := 0
	for _, e := range s.EntitiesByKind(EntityExternal) {
		if e.Name == "*" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("wildcard placeholder entities = %d, want 1", count)
	}
}

func TestImportResolution(t *testing.T) {
	result := build(t, map[string]string{
		"a/A.java": `package a; public class A { public void m(){} }`,
		"b/B.java": `package b;
import a.A;
import java.util.List;
import com.vendor.Thing;
class B { A helper; void run(){ helper.m(); } }`,
	})
	s := result.Store

	t.Run("project import resolves to entity", func(t *testing.T) {
		found := false
		for _, e := range s.OutgoingEdges("b/B.java", RelationImports) {
			if e.TargetID == "a.A" {
				found = true
			}
		}
		if !found {
			t.Error("no IMPORTS edge from b/B.java to a.A")
		}
	})

	t.Run("stdlib import gets marked placeholder", func(t *testing.T) {
		requireEntity(t, s, "external:java.util:List", EntityExternal)
		pkg := requireEntity(t, s, "external:java.util", EntityExternal)
		if !hasModifier(pkg.Modifiers, "stdlib") {
			t.Errorf("stdlib package modifiers = %v, want stdlib mark", pkg.Modifiers)
		}
	})

	t.Run("third-party import gets plain placeholder", func(t *testing.T) {
		requireEntity(t, s, "external:com.vendor:Thing", EntityExternal)
		pkg := requireEntity(t, s, "external:com.vendor", EntityExternal)
		if hasModifier(pkg.Modifiers, "stdlib") {
			t.Error("vendor package should not be marked stdlib")
		}
	})

	t.Run("call through imported-type field resolves cross package", func(t *testing.T) {
		if n := invokesBetween(s, "b.B.run()", "a.A.m()"); n != 1 {
			t.Errorf("B.run -> A.m invokes = %d, want 1", n)
		}
	})
}

func TestInheritedMethodResolution(t *testing.T) {
	result := build(t, map[string]string{
		"Base.java":  `package p; class Base { void greet(){} }`,
		"Child.java": `package p; class Child extends Base { void run(){ greet(); this.greet(); } }`,
	})
	s := result.Store

	if n := invokesBetween(s, "p.Child.run()", "p.Base.greet()"); n != 2 {
		t.Errorf("Child.run -> Base.greet invokes = %d, want 2 (plain and this-qualified)", n)
	}
}

func TestSuperCallResolvesToSuperclass(t *testing.T) {
	result := build(t, map[string]string{
		"Base.java":  `package p; class Base { void go(){} }`,
		"Child.java": `package p; class Child extends Base { void go(){ super.go(); } }`,
	})
	s := result.Store

	if n := invokesBetween(s, "p.Child.go()", "p.Base.go()"); n != 1 {
		t.Errorf("super.go() invokes into Base.go = %d, want 1", n)
	}
	if n := invokesBetween(s, "p.Child.go()", "p.Child.go()"); n != 0 {
		t.Errorf("super call resolved to own override: %d edges", n)
	}
}

func TestOverloadFanOutOnArityTie(t *testing.T) {
	result := build(t, map[string]string{
		"C.java": `package p;
class C {
    void f(int a){}
    void f(String s){}
    void g(){ f(x); }
    int x;
}`,
	})
	s := result.Store

	out := s.OutgoingEdges("p.C.g()", RelationInvokes)
	if len(out) != 2 {
		t.Fatalf("fan-out edges = %d, want 2 (both same-arity overloads)", len(out))
	}
	targets := map[string]bool{}
	for _, e := range out {
		targets[e.TargetID] = true
	}
	if !targets["p.C.f(int)"] || !targets["p.C.f(String)"] {
		t.Errorf("fan-out targets = %v", targets)
	}
	if result.Stats.FanOutCalls != 1 {
		t.Errorf("fan-out calls = %d, want 1", result.Stats.FanOutCalls)
	}
}

func TestStaticInitializerAttribution(t *testing.T) {
	result := build(t, map[string]string{
		"C.java": `package p;
class C {
    static int X = compute();
    static { prime(); }
    int y = setup();

    static int compute(){ return 1; }
    static void prime(){}
    int setup(){ return 2; }
}`,
	})
	s := result.Store

	requireEntity(t, s, "p.C.<clinit>", EntityMethod)
	requireEntity(t, s, "p.C.<init>", EntityMethod)

	if n := invokesBetween(s, "p.C.<clinit>", "p.C.compute()"); n != 1 {
		t.Errorf("<clinit> -> compute invokes = %d, want 1", n)
	}
	if n := invokesBetween(s, "p.C.<clinit>", "p.C.prime()"); n != 1 {
		t.Errorf("<clinit> -> prime invokes = %d, want 1", n)
	}
	if n := invokesBetween(s, "p.C.<init>", "p.C.setup()"); n != 1 {
		t.Errorf("<init> -> setup invokes = %d, want 1", n)
	}
}

func TestLocalVariableReceiverResolution(t *testing.T) {
	result := build(t, map[string]string{
		"Helper.java": `package p; class Helper { void assist(){} }`,
		"Main.java": `package p;
class Main {
    void run(){
        Helper h = new Helper();
        h.assist();
    }
}`,
	})
	s := result.Store

	if n := invokesBetween(s, "p.Main.run()", "p.Helper.assist()"); n != 1 {
		t.Errorf("run -> assist invokes = %d, want 1", n)
	}
	if n := invokesBetween(s, "p.Main.run()", "p.Helper.<init>()"); n != 1 {
		t.Errorf("run -> Helper ctor invokes = %d, want 1", n)
	}
}

func TestStaticTypeReceiverResolution(t *testing.T) {
	result := build(t, map[string]string{
		"Util.java": `package p; class Util { static void log(String m){} }`,
		"Main.java": `package p; class Main { void run(){ Util.log("hi"); } }`,
	})
	s := result.Store

	if n := invokesBetween(s, "p.Main.run()", "p.Util.log(String)"); n != 1 {
		t.Errorf("run -> Util.log invokes = %d, want 1", n)
	}
}

func TestConstructorOverloadByArity(t *testing.T) {
	result := build(t, map[string]string{
		"Box.java":  `package p; class Box { Box(){} Box(int size){} }`,
		"Main.java": `package p; class Main { void run(){ new Box(3); } }`,
	})
	s := result.Store

	if n := invokesBetween(s, "p.Main.run()", "p.Box.<init>(int)"); n != 1 {
		t.Errorf("run -> Box(int) invokes = %d, want 1", n)
	}
	if n := invokesBetween(s, "p.Main.run()", "p.Box.<init>()"); n != 0 {
		t.Errorf("run -> Box() invokes = %d, want 0", n)
	}
}

func TestExternalConstructorGetsPlaceholderEdge(t *testing.T) {
	result := build(t, map[string]string{
		"Main.java": `package p;
import com.vendor.Thing;
class Main { void run(){ new Thing(); } }`,
	})
	s := result.Store

	if n := invokesBetween(s, "p.Main.run()", "external:com.vendor:Thing"); n != 1 {
		t.Errorf("run -> external Thing invokes = %d, want 1", n)
	}
}

func TestNestedTypeEnclosingScope(t *testing.T) {
	result := build(t, map[string]string{
		"Outer.java": `package p;
class Outer {
    Helper shared;
    class Inner {
        void use(){ shared.help(); }
    }
}`,
		"Helper.java": `package p; class Helper { void help(){} }`,
	})
	s := result.Store

	requireEntity(t, s, "p.Outer.Inner", EntityClass)
	if n := invokesBetween(s, "p.Outer.Inner.use()", "p.Helper.help()"); n != 1 {
		t.Errorf("Inner.use -> Helper.help invokes = %d, want 1 (enclosing field)", n)
	}
}

func TestStaticNestedBoundaryStopsEnclosingWalk(t *testing.T) {
	result := build(t, map[string]string{
		"Outer.java": `package p;
class Outer {
    Helper shared;
    static class Nested {
        void use(){ shared.help(); }
    }
}`,
		"Helper.java": `package p; class Helper { void help(){} }`,
	})
	s := result.Store

	// A static nested type has no enclosing instance: the outer field is
	// not visible, so the call drops.
	if n := len(s.OutgoingEdges("p.Outer.Nested.use()", RelationInvokes)); n != 0 {
		t.Errorf("Nested.use invokes = %d, want 0", n)
	}
}

func TestParseFailureSkipsFileOnly(t *testing.T) {
	result := build(t, map[string]string{
		"Bad.java":  string([]byte{0xff, 0xfe, 0x00, 0x01}),
		"Good.java": `package p; class Good {}`,
	})

	if len(result.FileErrors) != 1 || result.FileErrors[0].Path != "Bad.java" {
		t.Fatalf("file errors = %+v, want one for Bad.java", result.FileErrors)
	}
	requireEntity(t, result.Store, "p.Good", EntityClass)
	if result.Stats.FilesFailed != 1 || result.Stats.FilesProcessed != 1 {
		t.Errorf("stats = %+v, want 1 processed 1 failed", result.Stats)
	}
}

func TestUnresolvedSupertypeBecomesPlaceholder(t *testing.T) {
	result := build(t, map[string]string{
		"A.java": `package p;
import com.vendor.Base;
class A extends Base implements Runnable {}`,
	})
	s := result.Store

	out := s.OutgoingEdges("p.A", RelationInherits)
	if len(out) != 2 {
		t.Fatalf("inherits edges = %d, want 2", len(out))
	}
	requireEntity(t, s, "external:com.vendor:Base", EntityExternal)
	requireEntity(t, s, "external::Runnable", EntityExternal)
}

func TestDefaultPackageGrouping(t *testing.T) {
	result := build(t, map[string]string{
		"Top.java":      `class Top {}`,
		"sub/Deep.java": `class Deep {}`,
	})
	s := result.Store

	requireEntity(t, s, DefaultPackageName, EntityPackage)
	requireEntity(t, s, "sub", EntityPackage)

	top, _ := s.GetEntity(DefaultPackageName)
	if top.ContainerID != RootDirID {
		t.Errorf("default package container = %q, want %q", top.ContainerID, RootDirID)
	}
	deep, _ := s.GetEntity("sub")
	if deep.ContainerID != DirID("sub") {
		t.Errorf("synthetic package container = %q, want sub directory", deep.ContainerID)
	}
	requireEntity(t, s, "sub.Deep", EntityClass)
}

func TestInterfaceConstantReceiverResolution(t *testing.T) {
	// Interface fields are implicitly static constants; a call through one
	// must resolve to the constant's declared type.
	result := build(t, map[string]string{
		"Helper.java": `package p; class Helper { void help(){} }`,
		"I.java":      `package p; interface I { Helper H = new Helper(); }`,
		"C.java":      `package p; class C implements I { void f(){ H.help(); } }`,
	})
	s := result.Store

	requireEntity(t, s, "p.I", EntityInterface)
	if n := invokesBetween(s, "p.C.f()", "p.Helper.help()"); n != 1 {
		t.Errorf("C.f -> Helper.help invokes = %d, want 1", n)
	}
}

func TestCallAttributionColumnTieBreak(t *testing.T) {
	// Two nested one-line owners on the same line: the column-narrower
	// range must win, regardless of slice order.
	outer := callOwner{entityID: "p.A.f()", typeID: "p.A", loc: ast.Location{
		FilePath: "A.java", StartLine: 3, EndLine: 3, StartCol: 10, EndCol: 80,
	}}
	inner := callOwner{entityID: "p.A.L.g()", typeID: "p.A.L", loc: ast.Location{
		FilePath: "A.java", StartLine: 3, EndLine: 3, StartCol: 30, EndCol: 60,
	}}
	call := ast.Location{FilePath: "A.java", StartLine: 3, EndLine: 3, StartCol: 40, EndCol: 45}

	for name, owners := range map[string][]callOwner{
		"inner last":  {outer, inner},
		"inner first": {inner, outer},
	} {
		t.Run(name, func(t *testing.T) {
			fe := &fileEntry{path: "A.java", owners: owners}
			owner, ok := attributeCall(fe, call)
			if !ok || owner.entityID != "p.A.L.g()" {
				t.Errorf("attributed to %q (ok=%v), want p.A.L.g()", owner.entityID, ok)
			}
		})
	}
}

func TestEmptyInput(t *testing.T) {
	result := build(t, nil)
	if result.Stats.Entities != 0 || result.Stats.Edges != 0 {
		t.Errorf("empty input stats = %+v, want zero", result.Stats)
	}
	if !result.Store.Frozen() {
		t.Error("store should be frozen after build")
	}
}
