// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/repo"
)

func newTestTracker(t *testing.T) (*Tracker, *repo.MemoryRepository) {
	t.Helper()
	repository := repo.NewMemoryRepository()
	tracker, err := NewTracker(NewMemoryStore(), repository, 0)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tracker, repository
}

func passRecord(ms int64) model.ExecutionRecord {
	return model.ExecutionRecord{Passed: true, DurationMillis: ms}
}

func failRecord(msg string) model.ExecutionRecord {
	return model.ExecutionRecord{Passed: false, ErrorMessage: msg}
}

func record(t *testing.T, tracker *Tracker, id string, recs ...model.ExecutionRecord) *model.TestExecutionHistory {
	t.Helper()
	var h *model.TestExecutionHistory
	var err error
	for _, rec := range recs {
		h, err = tracker.RecordExecution(context.Background(), id, rec)
		if err != nil {
			t.Fatalf("RecordExecution: %v", err)
		}
	}
	return h
}

func TestRecordExecution_LazyCreateWithMetadata(t *testing.T) {
	tracker, repository := newTestTracker(t)
	err := repository.Save(context.Background(), &model.TestCase{
		ID:   "t1",
		Name: "OrderServiceTest.testTotal",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	h := record(t, tracker, "t1", passRecord(120))

	if h.TestName != "OrderServiceTest.testTotal" {
		t.Errorf("test name = %q, want metadata from repository", h.TestName)
	}
	if h.FirstExecuted.IsZero() || h.LastExecuted.IsZero() {
		t.Error("expected execution timestamps to be set")
	}
}

func TestRecordExecution_CounterInvariant(t *testing.T) {
	tracker, _ := newTestTracker(t)

	recs := []model.ExecutionRecord{
		passRecord(100), failRecord("boom"), passRecord(200),
		failRecord("boom"), failRecord("boom"),
	}
	var h *model.TestExecutionHistory
	for _, rec := range recs {
		h = record(t, tracker, "t1", rec)
		if h.TotalExecutions != h.PassedExecutions+h.FailedExecutions {
			t.Fatalf("invariant violated: total=%d passed=%d failed=%d",
				h.TotalExecutions, h.PassedExecutions, h.FailedExecutions)
		}
	}

	if h.TotalExecutions != 5 || h.PassedExecutions != 2 || h.FailedExecutions != 3 {
		t.Errorf("counters = %d/%d/%d, want 5/2/3",
			h.TotalExecutions, h.PassedExecutions, h.FailedExecutions)
	}
	if h.PassRate != 0.4 {
		t.Errorf("pass rate = %v, want 0.4", h.PassRate)
	}
}

func TestRecordExecution_AverageIsLifetimeNotWindow(t *testing.T) {
	tracker, err := NewTracker(NewMemoryStore(), nil, 2)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	// Three runs with a window of two: the first run falls out of the
	// window but must still contribute to the average.
	h := record(t, tracker, "t1", passRecord(300), passRecord(100), passRecord(200))

	if len(h.RecentExecutions) != 2 {
		t.Fatalf("window len = %d, want 2", len(h.RecentExecutions))
	}
	if h.AverageExecutionTimeMillis != 200 {
		t.Errorf("average = %v, want 200", h.AverageExecutionTimeMillis)
	}
	if h.TotalExecutions != 3 {
		t.Errorf("total = %d, want 3", h.TotalExecutions)
	}
}

func TestRecordExecution_WindowIsBounded(t *testing.T) {
	tracker, _ := newTestTracker(t)

	var h *model.TestExecutionHistory
	for i := 0; i < DefaultWindowSize+5; i++ {
		h = record(t, tracker, "t1", passRecord(int64(i)))
	}

	if len(h.RecentExecutions) != DefaultWindowSize {
		t.Errorf("window len = %d, want %d", len(h.RecentExecutions), DefaultWindowSize)
	}
	// Newest first: the last push is at the front.
	if h.RecentExecutions[0].DurationMillis != int64(DefaultWindowSize+4) {
		t.Errorf("newest duration = %d, want %d",
			h.RecentExecutions[0].DurationMillis, DefaultWindowSize+4)
	}
}

func TestTrendClassification(t *testing.T) {
	cases := []struct {
		name string
		// oldest-first outcomes
		outcomes []bool
		want     model.Trend
	}{
		{"all pass", []bool{true, true, true, true}, model.TrendStablePass},
		{"all fail", []bool{false, false, false, false}, model.TrendStableFail},
		{"single pass", []bool{true}, model.TrendStablePass},
		{"short mixed", []bool{true, false}, model.TrendFlaky},
		{"improving", []bool{false, false, false, true, true, true}, model.TrendImproving},
		{"degrading", []bool{true, true, true, false, false, false}, model.TrendDegrading},
		{"alternating", []bool{true, false, true, false}, model.TrendFlaky},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker, _ := newTestTracker(t)
			var h *model.TestExecutionHistory
			for _, passed := range tc.outcomes {
				rec := model.ExecutionRecord{Passed: passed}
				h = record(t, tracker, "t1", rec)
			}
			if h.Trend != tc.want {
				t.Errorf("trend = %s, want %s", h.Trend, tc.want)
			}
		})
	}
}

func TestRecordHealingAttempt_TagsAndRate(t *testing.T) {
	tracker, repository := newTestTracker(t)
	ctx := context.Background()
	if err := repository.Save(ctx, &model.TestCase{ID: "t1", Name: "n"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	h, err := tracker.RecordHealingAttempt(ctx, "t1", "applied fix X", true)
	if err != nil {
		t.Fatalf("RecordHealingAttempt: %v", err)
	}
	if len(h.HealingAttempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(h.HealingAttempts))
	}
	if h.HealingAttempts[0].Description != "[SUCCESS] applied fix X" {
		t.Errorf("description = %q, want [SUCCESS] prefix with original text",
			h.HealingAttempts[0].Description)
	}
	if h.HealingSuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", h.HealingSuccessRate)
	}

	h, err = tracker.RecordHealingAttempt(ctx, "t1", "verification failed", false)
	if err != nil {
		t.Fatalf("RecordHealingAttempt: %v", err)
	}
	if !strings.HasPrefix(h.HealingAttempts[1].Description, "[FAILURE] ") {
		t.Errorf("description = %q, want [FAILURE] prefix", h.HealingAttempts[1].Description)
	}
	if h.HealingSuccessRate != 0.5 {
		t.Errorf("success rate = %v, want 0.5", h.HealingSuccessRate)
	}
	if h.HealingSuccessRate < 0 || h.HealingSuccessRate > 1 {
		t.Errorf("success rate %v outside [0,1]", h.HealingSuccessRate)
	}
}

func TestRecordHealingAttempt_NoOpForDeletedTest(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	// No history exists and the repository has no such test: no record
	// may be created.
	h, err := tracker.RecordHealingAttempt(ctx, "ghost", "anything", true)
	if err != nil {
		t.Fatalf("RecordHealingAttempt: %v", err)
	}
	if h != nil {
		t.Errorf("expected nil history for deleted test, got %+v", h)
	}
	if _, exists, _ := tracker.History(ctx, "ghost"); exists {
		t.Error("expected no history record to be created")
	}
}

func TestAttachPatterns(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	// No history yet: a silent no-op.
	if err := tracker.AttachPatterns(ctx, "t1", []string{"NullPointerException"}); err != nil {
		t.Fatalf("AttachPatterns: %v", err)
	}

	record(t, tracker, "t1", failRecord("npe"))
	if err := tracker.AttachPatterns(ctx, "t1", []string{"NullPointerException"}); err != nil {
		t.Fatalf("AttachPatterns: %v", err)
	}

	h, exists, err := tracker.History(ctx, "t1")
	if err != nil || !exists {
		t.Fatalf("History: exists=%v err=%v", exists, err)
	}
	if len(h.MatchedPatterns) != 1 || h.MatchedPatterns[0] != "NullPointerException" {
		t.Errorf("matched patterns = %v", h.MatchedPatterns)
	}
}

func TestHistory_SurvivesStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	tracker, err := NewTracker(store, nil, 0)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	ctx := context.Background()

	rec := model.ExecutionRecord{
		Passed:       false,
		ErrorMessage: "java.lang.AssertionError: expected:<1> but was:<2>",
		StackTrace:   "at FooTest.testBar(FooTest.java:10)",
		Timestamp:    time.Now(),
	}
	record(t, tracker, "t1", rec)

	h, exists, err := store.Get(ctx, "t1")
	if err != nil || !exists {
		t.Fatalf("Get: exists=%v err=%v", exists, err)
	}
	latest, ok := h.LatestExecution()
	if !ok {
		t.Fatal("expected a latest execution")
	}
	if latest.ErrorMessage != rec.ErrorMessage || latest.StackTrace != rec.StackTrace {
		t.Error("failure detail lost in store round trip")
	}
}
