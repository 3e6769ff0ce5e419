// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for heal-pipeline operations.
var (
	tracer = otel.Tracer("mend.orchestrator")
	meter  = otel.Meter("mend.orchestrator")
)

// Metrics for heal-pipeline operations.
var (
	healLatency metric.Float64Histogram
	healTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		healLatency, err = meter.Float64Histogram(
			"heal_pipeline_duration_seconds",
			metric.WithDescription("Duration of heal pipelines, end to end"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		healTotal, err = meter.Int64Counter(
			"heal_pipeline_total",
			metric.WithDescription("Heal pipelines by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startHealSpan creates a span for one heal pipeline.
func startHealSpan(ctx context.Context, testID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator.HealTest",
		trace.WithAttributes(
			attribute.String("heal.test_id", testID),
		),
	)
}

// recordHealOutcome records the pipeline outcome on metrics and span.
func recordHealOutcome(ctx context.Context, span trace.Span, outcome string, seconds float64) {
	span.SetAttributes(attribute.String("heal.outcome", outcome))
	healLatency.Record(ctx, seconds)
	healTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
