// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("javagraph/ast")

var (
	parseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "javagraph",
		Subsystem: "ast",
		Name:      "parse_duration_seconds",
		Help:      "Time spent parsing a single Java source file.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	parseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "javagraph",
		Subsystem: "ast",
		Name:      "parse_total",
		Help:      "Total parse attempts by outcome.",
	}, []string{"outcome"})

	typesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "javagraph",
		Subsystem: "ast",
		Name:      "types_extracted_total",
		Help:      "Total type declarations extracted across all files.",
	})
)

// startParseSpan opens the per-file parse span.
func startParseSpan(ctx context.Context, filePath string, sizeBytes int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "ast.Parse")
	span.SetAttributes(
		attribute.String("file.path", filePath),
		attribute.Int("file.size_bytes", sizeBytes),
	)
	return ctx, span
}

// setParseSpanResult records extraction counts on the parse span.
func setParseSpanResult(span trace.Span, types, calls, errs int) {
	span.SetAttributes(
		attribute.Int("parse.types", types),
		attribute.Int("parse.calls", calls),
		attribute.Int("parse.errors", errs),
	)
}

// recordParseMetrics updates Prometheus metrics for one parse attempt.
func recordParseMetrics(elapsed time.Duration, types int, ok bool) {
	parseDuration.Observe(elapsed.Seconds())
	if ok {
		parseTotal.WithLabelValues("success").Inc()
		typesExtracted.Add(float64(types))
	} else {
		parseTotal.WithLabelValues("failure").Inc()
	}
}
