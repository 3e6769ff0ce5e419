// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package impact detects which tests a production-code change breaks.
//
// The analyzer compares a class's method map before and after a change
// purely structurally: return type and parameter type sequence. Body
// changes never count as impact. This structural-only equivalence is a
// documented limitation, not a bug.
package impact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/repo"
)

// Analyzer marks tests BROKEN when their target method changed.
//
// # Thread Safety
//
// Safe for concurrent use when the repository is.
type Analyzer struct {
	repository repo.TestRepository
	logger     *slog.Logger
}

// NewAnalyzer creates a change-impact analyzer.
func NewAnalyzer(repository repo.TestRepository) (*Analyzer, error) {
	if repository == nil {
		return nil, errors.New("test repository is required")
	}
	if err := initMetrics(); err != nil {
		return nil, fmt.Errorf("init impact metrics: %w", err)
	}
	return &Analyzer{
		repository: repository,
		logger:     slog.Default().With(slog.String("component", "impact")),
	}, nil
}

// AnalyzeImpact compares two method maps of one class and breaks the
// impacted tests.
//
// # Description
//
// A method is impacted when it is absent from the new map (removed) or
// present with a different return type or parameter type sequence.
// Every persisted test targeting an impacted method transitions to
// BROKEN and is saved; tests whose current status does not admit the
// BROKEN transition (GENERATED tests that never ran) are left alone.
// A body-only change produces no side effects at all.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - className: The production class both maps describe.
//   - oldMethods: Method map extracted from the source before the change.
//   - newMethods: Method map extracted from the source after the change.
//
// # Outputs
//
//   - []model.TestCase: The de-duplicated tests marked BROKEN, sorted
//     by id. Empty (not nil) when nothing was impacted.
//   - error: Non-nil on repository failure.
func (a *Analyzer) AnalyzeImpact(ctx context.Context, className string, oldMethods, newMethods map[string]model.MethodSnapshot) ([]model.TestCase, error) {
	start := time.Now()
	ctx, span := startAnalysisSpan(ctx, className)
	defer span.End()

	changed := changedMethodNames(oldMethods, newMethods)
	impacted, err := a.breakTargetingTests(ctx, className, changed)

	setAnalysisSpanResult(span, len(changed), len(impacted), err == nil)
	analysisLatency.Record(ctx, time.Since(start).Seconds())
	analysisTotal.Add(ctx, 1)
	if err != nil {
		return nil, err
	}
	changedMethods.Record(ctx, int64(len(changed)))
	impactedTests.Record(ctx, int64(len(impacted)))

	a.logger.Info("change impact analyzed",
		slog.String("class_name", className),
		slog.Int("changed_methods", len(changed)),
		slog.Int("tests_marked_broken", len(impacted)))
	return impacted, nil
}

// changedMethodNames returns the sorted names of removed or
// structurally changed methods.
func changedMethodNames(oldMethods, newMethods map[string]model.MethodSnapshot) []string {
	var changed []string
	for name, oldSnap := range oldMethods {
		newSnap, ok := newMethods[name]
		if !ok || !oldSnap.StructurallyEqual(newSnap) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// breakTargetingTests transitions every test targeting a changed method
// to BROKEN and persists it.
func (a *Analyzer) breakTargetingTests(ctx context.Context, className string, changed []string) ([]model.TestCase, error) {
	seen := make(map[string]bool)
	impacted := make([]model.TestCase, 0)

	for _, method := range changed {
		tests, err := a.repository.FindByTarget(ctx, className, method)
		if err != nil {
			return nil, fmt.Errorf("find tests targeting %s.%s: %w", className, method, err)
		}
		for _, test := range tests {
			if seen[test.ID] {
				continue
			}
			seen[test.ID] = true

			if !model.ValidTransition(test.Status, model.StatusBroken) {
				a.logger.Debug("skipping test that cannot transition to BROKEN",
					slog.String("test_id", test.ID),
					slog.String("status", string(test.Status)))
				continue
			}
			test.Status = model.StatusBroken
			test.ModifiedAt = time.Now()
			if err := a.repository.Save(ctx, &test); err != nil {
				return nil, fmt.Errorf("persist broken test %s: %w", test.ID, err)
			}
			impacted = append(impacted, test)
		}
	}

	sort.Slice(impacted, func(i, j int) bool { return impacted[i].ID < impacted[j].ID })
	return impacted, nil
}
