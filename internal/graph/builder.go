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
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/javagraph/internal/ast"
)

// SourceFile is one input file handed to the builder by the loading layer.
type SourceFile struct {
	// Path is relative to the project root, forward slashes.
	Path string

	Content []byte
}

// FileError records a per-file failure that did not abort the run.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Stats summarizes one build run.
type Stats struct {
	FilesProcessed int `json:"files_processed"`
	FilesFailed    int `json:"files_failed"`

	Entities int `json:"entities"`
	Edges    int `json:"edges"`

	// CallsResolved counts call sites that produced at least one edge;
	// CallsDropped counts those that produced none; FanOutCalls counts
	// those that produced more than one.
	CallsResolved int `json:"calls_resolved"`
	CallsDropped  int `json:"calls_dropped"`
	FanOutCalls   int `json:"fan_out_calls"`

	Duration time.Duration `json:"duration_ns"`
}

// BuildResult is the outcome of one pipeline run.
type BuildResult struct {
	// Store holds the frozen graph. Nil only when Build returned an error.
	Store *Store

	Stats Stats

	// FileErrors lists files skipped for parse failures, sorted by path.
	// Never fatal: the rest of the run proceeds without them.
	FileErrors []FileError
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWorkerCount sets the parallelism of both pipeline phases.
// Values below 1 are ignored; the default is GOMAXPROCS.
func WithWorkerCount(n int) BuilderOption {
	return func(b *Builder) {
		if n >= 1 {
			b.workers = n
		}
	}
}

// WithParser replaces the default Java parser, mainly to adjust its
// file-size limit.
func WithParser(p *ast.JavaParser) BuilderOption {
	return func(b *Builder) {
		if p != nil {
			b.parser = p
		}
	}
}

// WithProgressCallback installs a callback invoked after each file
// finishes phase 1, with done and total counts. The callback must be safe
// for concurrent use.
func WithProgressCallback(fn func(done, total int)) BuilderOption {
	return func(b *Builder) {
		b.progress = fn
	}
}

// Builder runs the two-phase graph construction pipeline.
//
// Description:
//
//	Phase 1 (indexing) is file-parallel: each file is parsed and indexed
//	into entities and CONTAINS edges independently; no worker reads
//	another file's results. A hard barrier then finalizes the entity
//	table. Phase 2 (resolution) is file-parallel again over the read-only
//	table: imports and inheritance first, then invocations, which need
//	every type's resolved supertype chain. Edge appends are concurrency
//	safe throughout.
//
//	A file whose tree cannot be produced is skipped and reported in
//	BuildResult.FileErrors; the run continues. Build itself fails only on
//	context cancellation or internal store misuse. The graph is built from
//	scratch each run; there is no incremental update.
//
// Thread Safety:
//
//	A Builder is stateless between runs and safe for concurrent Build
//	calls; each call uses its own store and build state.
type Builder struct {
	workers  int
	parser   *ast.JavaParser
	progress func(done, total int)
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		workers: runtime.GOMAXPROCS(0),
		parser:  ast.NewJavaParser(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the full pipeline over the given source files.
//
// Inputs:
//   - ctx: Context for cancellation between files.
//   - files: Source files from the loading layer. May be empty.
//
// Outputs:
//   - *BuildResult: The frozen graph with stats and per-file errors.
//   - error: Non-nil on cancellation or internal failure; no partial
//     graph is returned in that case.
func (b *Builder) Build(ctx context.Context, files []SourceFile) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "graph.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("build.files", len(files)))

	start := time.Now()
	store := NewStore()
	state := newBuildState()
	stats := &callStats{}

	var (
		errMu      sync.Mutex
		fileErrors []FileError
		done       atomic.Int64
	)

	// Phase 1: parse and index, file-parallel.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := b.parser.Parse(gctx, f.Content, f.Path)
			if err != nil {
				errMu.Lock()
				fileErrors = append(fileErrors, FileError{Path: f.Path, Err: err.Error()})
				errMu.Unlock()
				filesProcessed.WithLabelValues("parse_failure").Inc()
				slog.Warn("skipping file",
					slog.String("file", f.Path),
					slog.String("error", err.Error()))
			} else {
				if err := newIndexer(store, state).IndexFile(result); err != nil {
					return fmt.Errorf("indexing %s: %w", f.Path, err)
				}
				filesProcessed.WithLabelValues("indexed").Inc()
			}
			if b.progress != nil {
				b.progress(int(done.Add(1)), len(files))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("indexing phase: %w", err)
	}

	// Barrier: the entity table is complete; attach packages to their
	// directories and treat all phase-1 indexes as read-only from here.
	if err := finalizePackages(store, state); err != nil {
		return nil, fmt.Errorf("finalizing packages: %w", err)
	}

	res := &resolver{store: store, state: state}

	orderedFiles := make([]*fileEntry, 0, len(state.files))
	for _, fe := range state.files {
		orderedFiles = append(orderedFiles, fe)
	}
	sort.Slice(orderedFiles, func(i, j int) bool { return orderedFiles[i].path < orderedFiles[j].path })

	// Phase 2a: imports and inheritance. Each worker writes only the
	// supertype lists of its own file's types.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	imr := &importResolver{res: res}
	ir := &inheritanceResolver{res: res}
	for _, fe := range orderedFiles {
		fe := fe
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := imr.resolveFile(fe); err != nil {
				return fmt.Errorf("resolving imports of %s: %w", fe.path, err)
			}
			if err := ir.resolveFile(fe); err != nil {
				return fmt.Errorf("resolving inheritance of %s: %w", fe.path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("inheritance phase: %w", err)
	}

	// Phase 2b: invocations, which read every type's resolved supers.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	iv := &invocationResolver{res: res, scope: &scopeResolver{state: state}, stats: stats}
	for _, fe := range orderedFiles {
		fe := fe
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := iv.resolveFile(fe); err != nil {
				return fmt.Errorf("resolving calls of %s: %w", fe.path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("invocation phase: %w", err)
	}

	store.Freeze()

	sort.Slice(fileErrors, func(i, j int) bool { return fileErrors[i].Path < fileErrors[j].Path })

	elapsed := time.Since(start)
	buildDuration.Observe(elapsed.Seconds())
	callsDropped.Add(float64(stats.dropped.Load()))
	for kind, n := range store.RelationCounts() {
		edgesEmitted.WithLabelValues(kind).Add(float64(n))
	}

	result := &BuildResult{
		Store: store,
		Stats: Stats{
			FilesProcessed: len(files) - len(fileErrors),
			FilesFailed:    len(fileErrors),
			Entities:       store.NumEntities(),
			Edges:          store.NumEdges(),
			CallsResolved:  int(stats.resolved.Load()),
			CallsDropped:   int(stats.dropped.Load()),
			FanOutCalls:    int(stats.fanOut.Load()),
			Duration:       elapsed,
		},
		FileErrors: fileErrors,
	}

	span.SetAttributes(
		attribute.Int("build.entities", result.Stats.Entities),
		attribute.Int("build.edges", result.Stats.Edges),
		attribute.Int("build.files_failed", result.Stats.FilesFailed),
	)
	slog.Info("graph build complete",
		slog.Int("files", result.Stats.FilesProcessed),
		slog.Int("failed", result.Stats.FilesFailed),
		slog.Int("entities", result.Stats.Entities),
		slog.Int("edges", result.Stats.Edges),
		slog.Duration("duration", elapsed))

	return result, nil
}
