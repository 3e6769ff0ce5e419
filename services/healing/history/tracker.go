// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/repo"
)

// DefaultWindowSize is the capacity of the rolling execution window.
const DefaultWindowSize = 10

// minTrendRecords is the window size below which only the uniform
// trends (and FLAKY) can be assigned.
const minTrendRecords = 3

// trendShiftThreshold is the pass-ratio delta between the older and
// newer half of the window that separates IMPROVING/DEGRADING from FLAKY.
const trendShiftThreshold = 0.25

// Tracker maintains per-test execution history and the healing ledger.
//
// # Description
//
// History records are created lazily on the first recorded execution or
// healing attempt for a test id and are never deleted by the tracker;
// records for deleted tests are inert. Counters are recomputed from the
// full lifetime totals on every write — the bounded window feeds only
// the trend classification.
//
// # Thread Safety
//
// Safe for concurrent use. A single mutex serializes read-modify-write
// cycles against the store; per-id locking lives in the orchestrator.
type Tracker struct {
	store      Store
	repository repo.TestRepository
	windowSize int
	mu         sync.Mutex
}

// NewTracker creates a tracker over the given store.
//
// # Inputs
//
//   - store: History store. Required.
//   - repository: Used to resolve test metadata on lazy creation and to
//     detect deleted tests. May be nil; then metadata defaults to the id
//     and healing attempts are recorded unconditionally.
//   - windowSize: Capacity of the rolling window; <= 0 uses DefaultWindowSize.
func NewTracker(store Store, repository repo.TestRepository, windowSize int) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("history store is required")
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Tracker{store: store, repository: repository, windowSize: windowSize}, nil
}

// RecordExecution records one run of a test.
//
// # Description
//
// Lazily creates the history record, pushes the record into the rolling
// window, recomputes the lifetime counters and the trend, and persists
// the result.
//
// Invariant after return: TotalExecutions == PassedExecutions +
// FailedExecutions, and PassRate is their ratio.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - testID: Test case id. Required.
//   - rec: The execution record. A zero Timestamp is replaced by now.
//
// # Outputs
//
//   - *model.TestExecutionHistory: The updated record.
//   - error: Non-nil on store failure.
func (t *Tracker) RecordExecution(ctx context.Context, testID string, rec model.ExecutionRecord) (*model.TestExecutionHistory, error) {
	if testID == "" {
		return nil, errors.New("test id is required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.loadOrCreate(ctx, testID)
	if err != nil {
		return nil, err
	}

	window := RingFromNewest(t.windowSize, h.RecentExecutions)
	window.Push(rec)
	h.RecentExecutions = window.NewestFirst()

	h.TotalExecutions++
	if rec.Passed {
		h.PassedExecutions++
	} else {
		h.FailedExecutions++
	}
	h.PassRate = float64(h.PassedExecutions) / float64(h.TotalExecutions)
	// Running mean over the lifetime, not just the window.
	h.AverageExecutionTimeMillis += (float64(rec.DurationMillis) - h.AverageExecutionTimeMillis) / float64(h.TotalExecutions)

	if h.FirstExecuted.IsZero() {
		h.FirstExecuted = rec.Timestamp
	}
	h.LastExecuted = rec.Timestamp
	h.Trend = classifyTrend(window.OldestFirst())

	if err := t.store.Put(ctx, h); err != nil {
		return nil, fmt.Errorf("persist history %s: %w", testID, err)
	}
	return h, nil
}

// RecordHealingAttempt appends an entry to the healing ledger.
//
// # Description
//
// The stored description carries a "[SUCCESS] " or "[FAILURE] " prefix
// followed by the original text. When no history exists yet and the
// test id no longer resolves in the repository, the call is a no-op —
// healing attempts for deleted tests leave no orphan records.
//
// # Outputs
//
//   - *model.TestExecutionHistory: The updated record; nil on the
//     deleted-test no-op.
//   - error: Non-nil on store failure.
func (t *Tracker) RecordHealingAttempt(ctx context.Context, testID, description string, successful bool) (*model.TestExecutionHistory, error) {
	if testID == "" {
		return nil, errors.New("test id is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists, err := t.store.Get(ctx, testID)
	if err != nil {
		return nil, err
	}
	if !exists {
		if !t.testExists(ctx, testID) {
			slog.Debug("skipping healing attempt for unknown test",
				slog.String("test_id", testID))
			return nil, nil
		}
		h = t.newHistory(ctx, testID)
	}

	tag := "[FAILURE] "
	if successful {
		tag = "[SUCCESS] "
	}
	h.HealingAttempts = append(h.HealingAttempts, model.HealingAttempt{
		Description: tag + description,
		Successful:  successful,
		Timestamp:   time.Now(),
	})

	successes := 0
	for _, a := range h.HealingAttempts {
		if a.Successful {
			successes++
		}
	}
	h.HealingSuccessRate = float64(successes) / float64(len(h.HealingAttempts))

	if err := t.store.Put(ctx, h); err != nil {
		return nil, fmt.Errorf("persist history %s: %w", testID, err)
	}
	return h, nil
}

// AttachPatterns persists diagnosed failure-pattern types into history.
// A no-op when the test has no history yet.
func (t *Tracker) AttachPatterns(ctx context.Context, testID string, patternTypes []string) error {
	if len(patternTypes) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists, err := t.store.Get(ctx, testID)
	if err != nil || !exists {
		return err
	}
	h.MatchedPatterns = append(h.MatchedPatterns, patternTypes...)
	return t.store.Put(ctx, h)
}

// History returns the history record for a test id.
//
// The boolean is false when nothing was ever recorded for the id.
func (t *Tracker) History(ctx context.Context, testID string) (*model.TestExecutionHistory, bool, error) {
	return t.store.Get(ctx, testID)
}

// loadOrCreate fetches the history or lazily creates it with current
// test metadata.
func (t *Tracker) loadOrCreate(ctx context.Context, testID string) (*model.TestExecutionHistory, error) {
	h, exists, err := t.store.Get(ctx, testID)
	if err != nil {
		return nil, err
	}
	if exists {
		return h, nil
	}
	return t.newHistory(ctx, testID), nil
}

func (t *Tracker) newHistory(ctx context.Context, testID string) *model.TestExecutionHistory {
	name := testID
	if t.repository != nil {
		if test, err := t.repository.FindByID(ctx, testID); err == nil {
			name = test.Name
		}
	}
	return &model.TestExecutionHistory{
		TestID:   testID,
		TestName: name,
		Trend:    model.TrendStablePass,
	}
}

func (t *Tracker) testExists(ctx context.Context, testID string) bool {
	if t.repository == nil {
		return true
	}
	_, err := t.repository.FindByID(ctx, testID)
	return err == nil
}

// classifyTrend applies the documented windowing rule to an
// oldest-first window.
//
// Rule: with fewer than 3 records the trend is STABLE_PASS or
// STABLE_FAIL when the window is uniform, otherwise FLAKY. With 3 or
// more records: all pass is STABLE_PASS and all fail STABLE_FAIL;
// otherwise the window is split into an older and a newer half and
// their pass ratios compared — a shift of at least +0.25 is IMPROVING,
// at most -0.25 is DEGRADING, anything in between is FLAKY.
func classifyTrend(oldestFirst []model.ExecutionRecord) model.Trend {
	n := len(oldestFirst)
	if n == 0 {
		return model.TrendStablePass
	}

	passes := 0
	for _, rec := range oldestFirst {
		if rec.Passed {
			passes++
		}
	}
	if passes == n {
		return model.TrendStablePass
	}
	if passes == 0 {
		return model.TrendStableFail
	}
	if n < minTrendRecords {
		return model.TrendFlaky
	}

	half := n / 2
	older := passRatio(oldestFirst[:half])
	newer := passRatio(oldestFirst[half:])
	switch {
	case newer-older >= trendShiftThreshold:
		return model.TrendImproving
	case older-newer >= trendShiftThreshold:
		return model.TrendDegrading
	default:
		return model.TrendFlaky
	}
}

func passRatio(records []model.ExecutionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	passes := 0
	for _, rec := range records {
		if rec.Passed {
			passes++
		}
	}
	return float64(passes) / float64(len(records))
}
