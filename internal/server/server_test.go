// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/javagraph/internal/graph"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	result, err := graph.NewBuilder(graph.WithWorkerCount(1)).Build(context.Background(), []graph.SourceFile{
		{Path: "A.java", Content: []byte(`package p; class A { void f(){ g(); } void g(){} }`)},
		{Path: "B.java", Content: []byte(`package p; class B extends A {}`)},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), NewHandlers(result, "/repo"))
	return router
}

func get(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON from %s: %v", path, err)
		}
	}
	return w, body
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	w, body := get(t, router, "/api/v1/graph/health")
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", w.Code, body)
	}
}

func TestStats(t *testing.T) {
	router := newTestRouter(t)
	w, body := get(t, router, "/api/v1/graph/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("stats code = %d", w.Code)
	}
	if body["project_root"] != "/repo" {
		t.Errorf("project_root = %v", body["project_root"])
	}
	counts, ok := body["entity_counts"].(map[string]any)
	if !ok || counts["class"].(float64) != 2 {
		t.Errorf("entity_counts = %v", body["entity_counts"])
	}
}

func TestEntities(t *testing.T) {
	router := newTestRouter(t)

	t.Run("by kind", func(t *testing.T) {
		w, body := get(t, router, "/api/v1/graph/entities?kind=class")
		if w.Code != http.StatusOK || body["count"].(float64) != 2 {
			t.Errorf("entities = %d %v", w.Code, body)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		w, _ := get(t, router, "/api/v1/graph/entities?kind=widget")
		if w.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", w.Code)
		}
	})
}

func TestEntityLookup(t *testing.T) {
	router := newTestRouter(t)

	t.Run("found", func(t *testing.T) {
		w, body := get(t, router, "/api/v1/graph/entity?id="+url.QueryEscape("p.A"))
		if w.Code != http.StatusOK || body["name"] != "A" {
			t.Errorf("entity = %d %v", w.Code, body)
		}
	})

	t.Run("missing", func(t *testing.T) {
		w, _ := get(t, router, "/api/v1/graph/entity?id=p.Nope")
		if w.Code != http.StatusNotFound {
			t.Errorf("code = %d, want 404", w.Code)
		}
	})

	t.Run("no id", func(t *testing.T) {
		w, _ := get(t, router, "/api/v1/graph/entity")
		if w.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", w.Code)
		}
	})
}

func TestEdges(t *testing.T) {
	router := newTestRouter(t)

	t.Run("outgoing invokes", func(t *testing.T) {
		w, body := get(t, router, "/api/v1/graph/edges?id="+url.QueryEscape("p.A.f()")+"&kind=invokes")
		if w.Code != http.StatusOK || body["count"].(float64) != 1 {
			t.Errorf("edges = %d %v", w.Code, body)
		}
	})

	t.Run("incoming inherits", func(t *testing.T) {
		w, body := get(t, router, "/api/v1/graph/edges?id=p.A&kind=inherits&direction=in")
		if w.Code != http.StatusOK || body["count"].(float64) != 1 {
			t.Errorf("edges = %d %v", w.Code, body)
		}
	})

	t.Run("bad direction", func(t *testing.T) {
		w, _ := get(t, router, "/api/v1/graph/edges?id=p.A&kind=invokes&direction=sideways")
		if w.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", w.Code)
		}
	})
}

func TestExport(t *testing.T) {
	router := newTestRouter(t)
	w, body := get(t, router, "/api/v1/graph/export")
	if w.Code != http.StatusOK {
		t.Fatalf("export code = %d", w.Code)
	}
	if body["schema_version"] != graph.SchemaVersion {
		t.Errorf("schema_version = %v", body["schema_version"])
	}
	if _, ok := body["entities"].([]any); !ok {
		t.Error("export has no entities array")
	}
}
