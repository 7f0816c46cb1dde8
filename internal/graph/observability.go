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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("javagraph/graph")

var (
	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "javagraph",
		Subsystem: "graph",
		Name:      "build_duration_seconds",
		Help:      "Wall time of a full two-phase graph build.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	filesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "javagraph",
		Subsystem: "graph",
		Name:      "files_processed_total",
		Help:      "Files consumed by builds, by outcome.",
	}, []string{"outcome"})

	edgesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "javagraph",
		Subsystem: "graph",
		Name:      "edges_emitted_total",
		Help:      "Graph edges emitted across builds, by relation kind.",
	}, []string{"kind"})

	callsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "javagraph",
		Subsystem: "graph",
		Name:      "calls_dropped_total",
		Help:      "Call sites that produced no edge (unresolved receivers and targets).",
	})
)
