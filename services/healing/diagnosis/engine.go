// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diagnosis classifies why a test broke.
//
// The engine combines three evidence sources into one AnalysisResult:
// the method signature the test was generated against, a structural
// inspection of the test's own source, and heuristic pattern matching
// over the most recent failure output.
package diagnosis

import (
	"context"
	"log/slog"

	"github.com/mendhq/mend/services/healing/codeparse"
	"github.com/mendhq/mend/services/healing/history"
	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/patterns"
	"github.com/mendhq/mend/services/healing/promptgen"
)

// Engine produces AnalysisResults for broken or failed tests.
//
// # Thread Safety
//
// Safe for concurrent use when its collaborators are.
type Engine struct {
	analyzer   SourceAnalyzer
	recognizer *patterns.Recognizer
	tracker    *history.Tracker
	index      *codeparse.SnapshotIndex
	logger     *slog.Logger
}

// NewEngine creates a diagnosis engine.
//
// # Inputs
//
//   - analyzer: Source inspector. Nil uses the tree-sitter TreeAnalyzer.
//   - recognizer: Failure-pattern classifier. Nil uses the default registry.
//   - tracker: Execution history. May be nil; then the pattern step is
//     skipped entirely.
//   - index: Current per-class method maps. May be nil; then the
//     source checks that need the target class's methods are skipped.
func NewEngine(analyzer SourceAnalyzer, recognizer *patterns.Recognizer, tracker *history.Tracker, index *codeparse.SnapshotIndex) *Engine {
	if analyzer == nil {
		analyzer = NewTreeAnalyzer()
	}
	if recognizer == nil {
		recognizer = patterns.NewRecognizer(nil)
	}
	return &Engine{
		analyzer:   analyzer,
		recognizer: recognizer,
		tracker:    tracker,
		index:      index,
		logger:     slog.Default().With(slog.String("component", "diagnosis")),
	}
}

// Analyze diagnoses a broken or failed test against the current state
// of its target method.
//
// # Description
//
// Runs, in order: the recorded-signature comparison, the source
// inspection, and the failure-pattern step over the latest unsuccessful
// execution. Matched pattern types are persisted back into the test's
// history. The call never returns an error: internal failures degrade
// to an "error" entry, and a result with no findings at all becomes a
// completeRegeneration request.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - test: The test under diagnosis. Required.
//   - snapshot: The target method's current state.
//
// # Outputs
//
//   - *model.AnalysisResult: Never nil, never empty.
func (e *Engine) Analyze(ctx context.Context, test *model.TestCase, snapshot model.MethodSnapshot) *model.AnalysisResult {
	result := model.NewAnalysisResult()

	e.compareSignatures(test, snapshot, result)
	e.inspectSource(ctx, test, result)
	e.matchPatterns(ctx, test, result)

	if result.Empty() {
		result.Add(model.IssueCompleteRegeneration, "no specific issue detected; full regeneration required")
	}
	return result
}

// compareSignatures checks the generation-time signature against now.
func (e *Engine) compareSignatures(test *model.TestCase, snapshot model.MethodSnapshot, result *model.AnalysisResult) {
	recorded, ok := promptgen.RecordedSignature(test.GenerationPrompt)
	if !ok {
		return
	}
	current := snapshot.Signature()
	if recorded != current {
		result.Add(model.IssueSignatureChanged,
			"generated against '"+recorded+"' but the method is now '"+current+"'")
	}
}

// inspectSource runs the structural source checks; failures degrade.
func (e *Engine) inspectSource(ctx context.Context, test *model.TestCase, result *model.AnalysisResult) {
	if test.SourceCode == "" {
		return
	}

	var targetMethods map[string]model.MethodSnapshot
	if e.index != nil {
		targetMethods, _ = e.index.Methods(test.TargetClass)
	}

	if err := e.analyzer.AnalyzeSource(ctx, test, targetMethods, result); err != nil {
		e.logger.Warn("source analysis failed, degrading to full regeneration",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
		result.Add(model.IssueError, "source analysis failed: "+err.Error())
		result.Add(model.IssueCompleteRegeneration, "source analysis failed")
	}
}

// matchPatterns classifies the latest failure output and persists the
// matched pattern types into history.
func (e *Engine) matchPatterns(ctx context.Context, test *model.TestCase, result *model.AnalysisResult) {
	if e.tracker == nil {
		return
	}

	h, exists, err := e.tracker.History(ctx, test.ID)
	if err != nil {
		e.logger.Warn("history lookup failed during diagnosis",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
		result.Add(model.IssueError, "history lookup failed: "+err.Error())
		return
	}
	if !exists {
		return
	}
	latest, ok := h.LatestExecution()
	if !ok || latest.Passed {
		return
	}

	matched := e.recognizer.Recognize(latest.ErrorMessage, latest.StackTrace)
	if len(matched) == 0 {
		return
	}

	types := make([]string, 0, len(matched))
	for _, pattern := range matched {
		result.Add(model.PatternIssueKey(pattern.Type), pattern.Description)
		for n, fix := range pattern.SuggestedFixes {
			result.Add(model.FixIssueKey(pattern.Type, n), fix)
		}
		types = append(types, pattern.Type)
	}

	if err := e.tracker.AttachPatterns(ctx, test.ID, types); err != nil {
		e.logger.Warn("failed to persist matched patterns",
			slog.String("test_id", test.ID),
			slog.String("error", err.Error()))
	}
}
