// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "time"

// Trend is a rolling classification of a test's recent pass/fail window.
type Trend string

const (
	TrendStablePass Trend = "STABLE_PASS"
	TrendStableFail Trend = "STABLE_FAIL"
	TrendImproving  Trend = "IMPROVING"
	TrendDegrading  Trend = "DEGRADING"
	TrendFlaky      Trend = "FLAKY"
)

// ExecutionRecord is one recorded run of a test.
type ExecutionRecord struct {
	// Passed reports the run outcome.
	Passed bool `json:"passed"`

	// ErrorMessage is the failure message for non-passing runs.
	ErrorMessage string `json:"error_message,omitempty"`

	// StackTrace is the failure stack trace for non-passing runs.
	StackTrace string `json:"stack_trace,omitempty"`

	// DurationMillis is the wall-clock execution time.
	DurationMillis int64 `json:"duration_millis"`

	// Timestamp is when the run finished.
	Timestamp time.Time `json:"timestamp"`
}

// HealingAttempt is one append-only ledger entry for a heal pipeline step.
//
// Description carries a "[SUCCESS] " or "[FAILURE] " prefix followed by
// the original step description, so the ledger reads as a log.
type HealingAttempt struct {
	// Description is the tagged step description.
	Description string `json:"description"`

	// Successful reports whether the step succeeded.
	Successful bool `json:"successful"`

	// Timestamp is when the attempt was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// TestExecutionHistory is the per-test rolling execution history.
//
// # Description
//
// Created lazily on the first recorded execution or healing attempt for
// a test id, never deleted while the test exists. Counters are full
// lifetime totals; RecentExecutions is a bounded window (newest first)
// used only for trend classification.
//
// Invariants maintained by the tracker:
//
//	TotalExecutions == PassedExecutions + FailedExecutions
//	HealingSuccessRate == successful attempts / total attempts (0 when none)
type TestExecutionHistory struct {
	// TestID is the test case id this history belongs to.
	TestID string `json:"test_id"`

	// TestName is the test name at creation time.
	TestName string `json:"test_name"`

	// FirstExecuted is the timestamp of the first recorded run.
	FirstExecuted time.Time `json:"first_executed"`

	// LastExecuted is the timestamp of the most recent run.
	LastExecuted time.Time `json:"last_executed"`

	// TotalExecutions is the lifetime run count.
	TotalExecutions int `json:"total_executions"`

	// PassedExecutions is the lifetime passing run count.
	PassedExecutions int `json:"passed_executions"`

	// FailedExecutions is the lifetime failing run count.
	FailedExecutions int `json:"failed_executions"`

	// PassRate is PassedExecutions / TotalExecutions.
	PassRate float64 `json:"pass_rate"`

	// AverageExecutionTimeMillis is the running mean over all runs.
	AverageExecutionTimeMillis float64 `json:"average_execution_time_millis"`

	// Trend classifies the recent window; see the tracker for the rule.
	Trend Trend `json:"trend"`

	// HealingSuccessRate is successful attempts / total attempts.
	HealingSuccessRate float64 `json:"healing_success_rate"`

	// RecentExecutions is the bounded window, newest first.
	RecentExecutions []ExecutionRecord `json:"recent_executions"`

	// HealingAttempts is the append-only healing ledger, oldest first.
	HealingAttempts []HealingAttempt `json:"healing_attempts"`

	// MatchedPatterns accumulates failure-pattern types attached by the
	// diagnosis engine, most recent diagnosis last.
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
}

// LatestExecution returns the most recent recorded run, if any.
func (h *TestExecutionHistory) LatestExecution() (ExecutionRecord, bool) {
	if len(h.RecentExecutions) == 0 {
		return ExecutionRecord{}, false
	}
	return h.RecentExecutions[0], true
}
