// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes a built dependency graph over HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/javagraph/internal/graph"
)

// Handlers serves read queries over one frozen graph.
//
// Description:
//
//	The graph is built once at startup and never mutated, so every
//	handler is a lock-free read. Rebuilding means restarting the server.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	result *graph.BuildResult
	root   string
}

// NewHandlers creates Handlers over a completed build.
func NewHandlers(result *graph.BuildResult, root string) *Handlers {
	return &Handlers{result: result, root: root}
}

// RegisterRoutes registers all graph query endpoints on the router group.
//
// Endpoints:
//
//	GET /graph/health   - Liveness check
//	GET /graph/stats    - Build stats plus per-kind counts
//	GET /graph/entities - Entities of one kind (?kind=class)
//	GET /graph/entity   - One entity by ID (?id=p.A)
//	GET /graph/edges    - Edges touching an entity
//	                      (?id=p.A&kind=invokes&direction=out)
//	GET /graph/export   - Full deterministic JSON export
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	g := rg.Group("/graph")
	{
		g.GET("/health", h.HandleHealth)
		g.GET("/stats", h.HandleStats)
		g.GET("/entities", h.HandleEntities)
		g.GET("/entity", h.HandleEntity)
		g.GET("/edges", h.HandleEdges)
		g.GET("/export", h.HandleExport)
	}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleStats returns build stats and aggregate counts.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"project_root":    h.root,
		"stats":           h.result.Stats,
		"entity_counts":   h.result.Store.EntityCounts(),
		"relation_counts": h.result.Store.RelationCounts(),
		"file_errors":     h.result.FileErrors,
	})
}

// HandleEntities lists all entities of the kind named by ?kind=.
func (h *Handlers) HandleEntities(c *gin.Context) {
	kind, err := graph.ParseEntityKind(c.Query("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entities := h.result.Store.EntitiesByKind(kind)
	c.JSON(http.StatusOK, gin.H{
		"kind":     kind.String(),
		"count":    len(entities),
		"entities": entities,
	})
}

// HandleEntity returns one entity by ?id=.
func (h *Handlers) HandleEntity(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}
	e, ok := h.result.Store.GetEntity(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found", "id": id})
		return
	}
	c.JSON(http.StatusOK, e)
}

// HandleEdges returns edges touching the entity named by ?id=, filtered by
// ?kind= and ?direction= (out by default).
func (h *Handlers) HandleEdges(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}
	kind, err := graph.ParseRelationKind(c.Query("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var edges []graph.Relation
	direction := c.DefaultQuery("direction", "out")
	switch direction {
	case "out":
		edges = h.result.Store.OutgoingEdges(id, kind)
	case "in":
		edges = h.result.Store.IncomingEdges(id, kind)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be in or out"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"kind":      kind.String(),
		"direction": direction,
		"count":     len(edges),
		"edges":     edges,
	})
}

// HandleExport returns the full deterministic graph export.
func (h *Handlers) HandleExport(c *gin.Context) {
	c.JSON(http.StatusOK, h.result.Store.ToSerializable(h.root))
}
