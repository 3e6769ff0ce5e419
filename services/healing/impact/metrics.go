// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package impact

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for change-impact operations.
var (
	tracer = otel.Tracer("mend.impact")
	meter  = otel.Meter("mend.impact")
)

// Metrics for change-impact operations.
var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	impactedTests   metric.Int64Histogram
	changedMethods  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"impact_analysis_duration_seconds",
			metric.WithDescription("Duration of change-impact analyses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"impact_analysis_total",
			metric.WithDescription("Total number of change-impact analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		impactedTests, err = meter.Int64Histogram(
			"impact_tests_marked_broken",
			metric.WithDescription("Tests transitioned to BROKEN per analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		changedMethods, err = meter.Int64Histogram(
			"impact_changed_methods",
			metric.WithDescription("Removed or structurally changed methods per analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalysisSpan creates a span for a change-impact analysis.
func startAnalysisSpan(ctx context.Context, className string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyzer.AnalyzeImpact",
		trace.WithAttributes(
			attribute.String("impact.class_name", className),
		),
	)
}

// setAnalysisSpanResult sets the result attributes on an analysis span.
func setAnalysisSpanResult(span trace.Span, changed, impacted int, success bool) {
	span.SetAttributes(
		attribute.Int("impact.changed_methods", changed),
		attribute.Int("impact.tests_marked_broken", impacted),
		attribute.Bool("impact.success", success),
	)
}
