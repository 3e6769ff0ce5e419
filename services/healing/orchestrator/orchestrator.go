// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator runs the heal pipeline: diagnose, produce a
// candidate, persist, execute, record history.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mendhq/mend/services/healing/codeparse"
	"github.com/mendhq/mend/services/healing/diagnosis"
	"github.com/mendhq/mend/services/healing/execute"
	"github.com/mendhq/mend/services/healing/generate"
	"github.com/mendhq/mend/services/healing/history"
	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/promptgen"
	"github.com/mendhq/mend/services/healing/repo"
)

// Sentinel errors for heal operations.
var (
	// ErrTestNotFound is returned synchronously for an unknown test id.
	// It is the only error a heal caller ever sees; every healing-time
	// failure is converted into persisted state and history entries.
	ErrTestNotFound = errors.New("test not found")

	// ErrEmptyGeneration marks a generation call that returned no usable
	// source. Internal; converted to a failed attempt, never returned.
	ErrEmptyGeneration = errors.New("generation returned empty source")
)

// Defaults for the pipeline's concurrency and execution bounds.
const (
	DefaultMaxConcurrentHeals = 4
	DefaultExecutionTimeout   = 2 * time.Minute
)

// Config bounds the orchestrator's pipeline.
type Config struct {
	// MaxConcurrentHeals caps in-flight heal pipelines. <= 0 uses
	// DefaultMaxConcurrentHeals.
	MaxConcurrentHeals int

	// ExecutionTimeout bounds the execution-collaborator await so a
	// stuck sandbox cannot starve the worker pool. <= 0 uses
	// DefaultExecutionTimeout.
	ExecutionTimeout time.Duration
}

// Orchestrator drives the heal pipeline for broken and failed tests.
//
// # Description
//
// Each HealTest call is one unit of work on a bounded pool, with
// per-test-id mutual exclusion: at most one pipeline is ever in flight
// for a given id, so a manual heal racing a batch heal cannot produce
// divergent persisted results.
//
// # Thread Safety
//
// Safe for concurrent use.
type Orchestrator struct {
	repository repo.TestRepository
	engine     *diagnosis.Engine
	tracker    *history.Tracker
	index      *codeparse.SnapshotIndex
	generator  generate.Client
	runner     execute.Runner

	sem         *semaphore.Weighted
	locks       *keyedMutex
	execTimeout time.Duration
	logger      *slog.Logger
}

// New creates an orchestrator.
//
// # Inputs
//
//   - repository: Test storage. Required.
//   - engine: Diagnosis engine. Required.
//   - tracker: Execution-history tracker. Required.
//   - index: Current per-class method maps. Required.
//   - generator: Generation collaborator. Required.
//   - runner: Execution collaborator. Required.
//   - cfg: Concurrency and timeout bounds.
func New(repository repo.TestRepository, engine *diagnosis.Engine, tracker *history.Tracker, index *codeparse.SnapshotIndex, generator generate.Client, runner execute.Runner, cfg Config) (*Orchestrator, error) {
	if repository == nil || engine == nil || tracker == nil || index == nil || generator == nil || runner == nil {
		return nil, errors.New("all orchestrator collaborators are required")
	}
	if err := initMetrics(); err != nil {
		return nil, fmt.Errorf("init orchestrator metrics: %w", err)
	}
	if cfg.MaxConcurrentHeals <= 0 {
		cfg.MaxConcurrentHeals = DefaultMaxConcurrentHeals
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = DefaultExecutionTimeout
	}
	return &Orchestrator{
		repository:  repository,
		engine:      engine,
		tracker:     tracker,
		index:       index,
		generator:   generator,
		runner:      runner,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConcurrentHeals)),
		locks:       newKeyedMutex(),
		execTimeout: cfg.ExecutionTimeout,
		logger:      slog.Default().With(slog.String("component", "orchestrator")),
	}, nil
}

// HealTest runs the full heal pipeline for one test.
//
// # Description
//
// An unknown id fails synchronously with ErrTestNotFound before any
// pipeline work. A test whose status is not BROKEN or FAILED is
// returned unchanged; the call is idempotent. Otherwise the pipeline
// runs to completion and the returned test carries the final verified
// status, PASSED or BROKEN. Healing-time failures (generation,
// persistence, execution) never surface as errors: they are persisted
// as BROKEN plus a failed healing attempt.
//
// # Inputs
//
//   - ctx: Context for cancellation; also bounds the wait for a worker slot.
//   - testID: The test to heal. Required.
//
// # Outputs
//
//   - *model.TestCase: The test in its final state.
//   - error: ErrTestNotFound, a context error, or nil.
func (o *Orchestrator) HealTest(ctx context.Context, testID string) (*model.TestCase, error) {
	if testID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrTestNotFound)
	}

	test, err := o.repository.FindByID(ctx, testID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTestNotFound, testID)
		}
		return nil, err
	}
	if !test.Status.Healable() {
		return test, nil
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.sem.Release(1)

	unlock := o.locks.Lock(testID)
	defer unlock()

	// Re-fetch under the lock: a concurrent pipeline may have finished
	// and changed the status while we waited.
	test, err = o.repository.FindByID(ctx, testID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTestNotFound, testID)
		}
		return nil, err
	}
	if !test.Status.Healable() {
		return test, nil
	}

	return o.heal(ctx, test), nil
}

// HealAllBrokenTests fans out one heal pipeline per broken test.
//
// # Description
//
// The broken set is snapshotted up front; pipelines run in parallel on
// the bounded pool with no cross-test ordering. The result list is
// best-effort and order-preserving: a test whose pipeline could not run
// (for example it was deleted mid-batch) appears in its snapshotted
// state, and individual failures never abort the batch.
func (o *Orchestrator) HealAllBrokenTests(ctx context.Context) ([]model.TestCase, error) {
	broken, err := o.repository.FindByStatus(ctx, model.StatusBroken)
	if err != nil {
		return nil, fmt.Errorf("list broken tests: %w", err)
	}

	results := make([]model.TestCase, len(broken))
	var g errgroup.Group
	for i := range broken {
		i := i
		g.Go(func() error {
			healed, err := o.HealTest(ctx, broken[i].ID)
			if err != nil {
				o.logger.Warn("batch heal skipped test",
					slog.String("test_id", broken[i].ID),
					slog.String("error", err.Error()))
				results[i] = broken[i]
				return nil
			}
			results[i] = *healed
			return nil
		})
	}
	g.Wait()

	o.logger.Info("batch heal finished", slog.Int("tests", len(broken)))
	return results, nil
}

// heal runs the pipeline steps on a test already known to be healable.
// It always returns the test in a persisted final state.
func (o *Orchestrator) heal(ctx context.Context, test *model.TestCase) *model.TestCase {
	start := time.Now()
	ctx, span := startHealSpan(ctx, test.ID)
	defer span.End()

	snapshot := o.resolveSnapshot(test)
	analysis := o.engine.Analyze(ctx, test, snapshot)

	description, err := o.produceCandidate(ctx, test, snapshot, analysis)
	if err != nil {
		recordHealOutcome(ctx, span, "generation_failed", time.Since(start).Seconds())
		return o.failHeal(ctx, test, err.Error())
	}

	test.Status = model.StatusHealed
	test.ModifiedAt = time.Now()
	if err := o.repository.Save(ctx, test); err != nil {
		recordHealOutcome(ctx, span, "persist_failed", time.Since(start).Seconds())
		return o.failHeal(ctx, test, "persist healed candidate: "+err.Error())
	}
	if _, err := o.tracker.RecordHealingAttempt(ctx, test.ID, description, true); err != nil {
		o.logger.Warn("failed to record healing attempt",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
	}

	result := o.executeCandidate(ctx, test)
	if _, err := o.tracker.RecordExecution(ctx, test.ID, model.ExecutionRecord{
		Passed:         result.Passed,
		ErrorMessage:   result.ErrorMessage,
		StackTrace:     result.StackTrace,
		DurationMillis: result.DurationMillis,
		Timestamp:      time.Now(),
	}); err != nil {
		o.logger.Warn("failed to record execution",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
	}

	if result.Passed {
		test.Status = model.StatusPassed
	} else {
		test.Status = model.StatusBroken
	}
	test.ModifiedAt = time.Now()
	if err := o.repository.Save(ctx, test); err != nil {
		o.logger.Error("failed to persist verified status",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
	}

	verification := "verification failed: " + result.ErrorMessage
	outcome := "verified_broken"
	if result.Passed {
		verification = "verification passed"
		outcome = "verified_passed"
	}
	if _, err := o.tracker.RecordHealingAttempt(ctx, test.ID, verification, result.Passed); err != nil {
		o.logger.Warn("failed to record verification attempt",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
	}

	recordHealOutcome(ctx, span, outcome, time.Since(start).Seconds())
	o.logger.Info("heal pipeline finished",
		slog.String("test_id", test.ID),
		slog.String("status", string(test.Status)))
	return test
}

// resolveSnapshot looks up the current state of the test's target
// method. An unresolvable target degrades to a name-only snapshot so
// diagnosis can still run.
func (o *Orchestrator) resolveSnapshot(test *model.TestCase) model.MethodSnapshot {
	snapshot, err := o.index.Resolve(test.TargetClass, test.TargetMethod)
	if err != nil {
		o.logger.Debug("target method not indexed",
			slog.String("test_id", test.ID),
			slog.String("target", test.TargetClass+"."+test.TargetMethod))
		return model.MethodSnapshot{
			ClassName:  test.TargetClass,
			MethodName: test.TargetMethod,
		}
	}
	return snapshot
}

// produceCandidate mutates the test's source, either by full
// regeneration or by targeted patching, and returns a description of
// the step taken.
func (o *Orchestrator) produceCandidate(ctx context.Context, test *model.TestCase, snapshot model.MethodSnapshot, analysis *model.AnalysisResult) (string, error) {
	if !analysis.RequiresRegeneration() {
		targetMethods, _ := o.index.Methods(test.TargetClass)
		patched, steps, ok := applyPatches(test, analysis, targetMethods)
		if ok {
			test.SourceCode = patched
			return "applied targeted patches: " + strings.Join(steps, "; "), nil
		}
		// Nothing patchable: fall through to full regeneration.
	}

	prompt := promptgen.BuildHealingPrompt(test, snapshot, analysis)
	raw, err := o.generator.Generate(ctx, prompt, generate.GenerationParams{})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	source := generate.CleanSource(raw)
	if source == "" {
		return "", ErrEmptyGeneration
	}

	test.SourceCode = source
	test.GenerationPrompt = prompt
	return "regenerated test source against the current method signature", nil
}

// executeCandidate submits the candidate to the runner under the
// execution timeout. Runner errors are folded into a failed result.
func (o *Orchestrator) executeCandidate(ctx context.Context, test *model.TestCase) execute.ExecutionResult {
	execCtx, cancel := context.WithTimeout(ctx, o.execTimeout)
	defer cancel()

	result, err := o.runner.Execute(execCtx, test)
	if err != nil {
		o.logger.Warn("execution collaborator failed",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
		return execute.ExecutionResult{
			TestID:       test.ID,
			Passed:       false,
			ErrorMessage: "execution failed: " + err.Error(),
		}
	}
	return result
}

// failHeal persists the BROKEN outcome of an aborted pipeline and
// records the failed attempt. The pipeline error never propagates.
func (o *Orchestrator) failHeal(ctx context.Context, test *model.TestCase, reason string) *model.TestCase {
	test.Status = model.StatusBroken
	test.ModifiedAt = time.Now()
	if err := o.repository.Save(ctx, test); err != nil {
		o.logger.Error("failed to persist aborted heal",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
	}
	if _, err := o.tracker.RecordHealingAttempt(ctx, test.ID, reason, false); err != nil {
		o.logger.Warn("failed to record failed attempt",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
	}
	o.logger.Warn("heal pipeline aborted",
		slog.String("test_id", test.ID),
		slog.String("reason", reason))
	return test
}
