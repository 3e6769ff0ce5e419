// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package healing exposes the test healing engine as a service: change
// impact analysis, the heal pipeline, and execution-history queries,
// over HTTP and through the filesystem watcher.
package healing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mendhq/mend/services/healing/codeparse"
	"github.com/mendhq/mend/services/healing/diagnosis"
	"github.com/mendhq/mend/services/healing/execute"
	"github.com/mendhq/mend/services/healing/generate"
	"github.com/mendhq/mend/services/healing/history"
	"github.com/mendhq/mend/services/healing/impact"
	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/orchestrator"
	"github.com/mendhq/mend/services/healing/patterns"
	"github.com/mendhq/mend/services/healing/repo"
)

// ServiceConfig bounds the service's pipelines.
type ServiceConfig struct {
	// HistoryWindowSize caps the rolling execution window per test.
	// <= 0 uses the history package default.
	HistoryWindowSize int

	// MaxConcurrentHeals caps in-flight heal pipelines. <= 0 uses the
	// orchestrator default.
	MaxConcurrentHeals int

	// ExecutionTimeout bounds each execution-collaborator await. <= 0
	// uses the orchestrator default.
	ExecutionTimeout time.Duration
}

// DefaultServiceConfig returns a config relying on package defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{}
}

// Service wires the healing engine together.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	repository repo.TestRepository
	store      history.Store
	extractor  codeparse.MethodExtractor
	index      *codeparse.SnapshotIndex
	tracker    *history.Tracker
	analyzer   *impact.Analyzer
	engine     *diagnosis.Engine
	orch       *orchestrator.Orchestrator
	logger     *slog.Logger
}

// NewService builds the full healing engine on top of the given
// storage and collaborators.
//
// # Inputs
//
//   - repository: Test storage. Required.
//   - store: History storage. Required.
//   - generator: Generation collaborator. Required.
//   - runner: Execution collaborator. Required.
//   - cfg: Pipeline bounds.
func NewService(repository repo.TestRepository, store history.Store, generator generate.Client, runner execute.Runner, cfg ServiceConfig) (*Service, error) {
	if repository == nil || store == nil {
		return nil, errors.New("repository and history store are required")
	}

	tracker, err := history.NewTracker(store, repository, cfg.HistoryWindowSize)
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}
	analyzer, err := impact.NewAnalyzer(repository)
	if err != nil {
		return nil, fmt.Errorf("create impact analyzer: %w", err)
	}

	index := codeparse.NewSnapshotIndex()
	engine := diagnosis.NewEngine(nil, patterns.NewRecognizer(nil), tracker, index)

	orch, err := orchestrator.New(repository, engine, tracker, index, generator, runner, orchestrator.Config{
		MaxConcurrentHeals: cfg.MaxConcurrentHeals,
		ExecutionTimeout:   cfg.ExecutionTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	return &Service{
		repository: repository,
		store:      store,
		extractor:  codeparse.NewJavaExtractor(),
		index:      index,
		tracker:    tracker,
		analyzer:   analyzer,
		engine:     engine,
		orch:       orch,
		logger:     slog.Default().With(slog.String("component", "healing")),
	}, nil
}

// AnalyzeImpactSources extracts method maps from both source versions,
// refreshes the snapshot index, and breaks the impacted tests.
//
// # Outputs
//
//   - []model.TestCase: The tests marked BROKEN, sorted by id.
//   - int: The number of removed or structurally changed methods.
//   - error: Non-nil on extraction or repository failure.
func (s *Service) AnalyzeImpactSources(ctx context.Context, className string, oldSource, newSource []byte) ([]model.TestCase, int, error) {
	oldMethods, err := s.extractor.ExtractMethods(ctx, oldSource)
	if err != nil {
		return nil, 0, fmt.Errorf("extract old methods: %w", err)
	}
	newMethods, err := s.extractor.ExtractMethods(ctx, newSource)
	if err != nil {
		return nil, 0, fmt.Errorf("extract new methods: %w", err)
	}

	// The index must reflect the post-change truth before any heal
	// pipeline resolves snapshots against it.
	s.index.Update(className, newMethods)

	impacted, err := s.analyzer.AnalyzeImpact(ctx, className, oldMethods, newMethods)
	if err != nil {
		return nil, 0, err
	}

	changed := 0
	for name, oldSnap := range oldMethods {
		newSnap, ok := newMethods[name]
		if !ok || !oldSnap.StructurallyEqual(newSnap) {
			changed++
		}
	}
	return impacted, changed, nil
}

// IndexSource extracts and indexes a class's methods without running
// impact analysis. Used for the first sighting of a source file.
func (s *Service) IndexSource(ctx context.Context, className string, source []byte) error {
	methods, err := s.extractor.ExtractMethods(ctx, source)
	if err != nil {
		return fmt.Errorf("extract methods for %s: %w", className, err)
	}
	s.index.Update(className, methods)
	return nil
}

// HealTest runs the heal pipeline for one test.
func (s *Service) HealTest(ctx context.Context, testID string) (*model.TestCase, error) {
	return s.orch.HealTest(ctx, testID)
}

// HealAllBrokenTests heals every broken test in parallel, best effort.
func (s *Service) HealAllBrokenTests(ctx context.Context) ([]model.TestCase, error) {
	return s.orch.HealAllBrokenTests(ctx)
}

// RecordExecution records an externally observed run and advances the
// test's status where the lifecycle allows it.
//
// A GENERATED test moves to PASSED or FAILED on its first run; statuses
// with no valid transition for the observed outcome keep their status
// while the run still lands in history.
func (s *Service) RecordExecution(ctx context.Context, testID string, rec model.ExecutionRecord) (*model.TestExecutionHistory, error) {
	test, err := s.repository.FindByID(ctx, testID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", orchestrator.ErrTestNotFound, testID)
		}
		return nil, err
	}

	target := model.StatusFailed
	if rec.Passed {
		target = model.StatusPassed
	}
	if model.ValidTransition(test.Status, target) {
		test.Status = target
		test.ModifiedAt = time.Now()
		if err := s.repository.Save(ctx, test); err != nil {
			return nil, fmt.Errorf("persist execution status: %w", err)
		}
	} else {
		s.logger.Debug("execution outcome does not advance status",
			slog.String("test_id", testID),
			slog.String("status", string(test.Status)),
			slog.String("outcome", string(target)))
	}

	return s.tracker.RecordExecution(ctx, testID, rec)
}

// FindTest returns one stored test.
func (s *Service) FindTest(ctx context.Context, testID string) (*model.TestCase, error) {
	return s.repository.FindByID(ctx, testID)
}

// ListTests returns stored tests, optionally filtered by status.
func (s *Service) ListTests(ctx context.Context, status model.TestStatus) ([]model.TestCase, error) {
	if status == "" {
		return s.repository.List(ctx)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return s.repository.FindByStatus(ctx, status)
}

// ListTestsByClass returns stored tests targeting the given class.
func (s *Service) ListTestsByClass(ctx context.Context, className string) ([]model.TestCase, error) {
	return s.repository.FindByClassName(ctx, className)
}

// Ready reports whether the backing storage is reachable.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.repository.List(ctx)
	return err
}

// SaveTest persists a test case.
func (s *Service) SaveTest(ctx context.Context, test *model.TestCase) error {
	return s.repository.Save(ctx, test)
}

// History returns one test's execution history.
func (s *Service) History(ctx context.Context, testID string) (*model.TestExecutionHistory, bool, error) {
	return s.tracker.History(ctx, testID)
}

// ListHistories returns every stored history record.
func (s *Service) ListHistories(ctx context.Context) ([]model.TestExecutionHistory, error) {
	return s.store.All(ctx)
}
