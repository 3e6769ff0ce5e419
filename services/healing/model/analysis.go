// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"fmt"
	"sort"
	"strings"
)

// Issue kinds produced by the diagnosis engine.
//
// Pattern-derived kinds are dynamic: "pattern_<Type>" carries a matched
// failure-pattern description and "fix_<Type>_<n>" carries the n-th
// suggested fix for that pattern type. Use PatternIssueKey and
// FixIssueKey to build them.
const (
	IssueSignatureChanged     = "methodSignatureChanged"
	IssueMissingImports       = "missingImports"
	IssueInvalidAssertions    = "invalidAssertions"
	IssueRenamedElements      = "renamedElements"
	IssueCompleteRegeneration = "completeRegeneration"
	IssueError                = "error"
)

const (
	patternIssuePrefix = "pattern_"
	fixIssuePrefix     = "fix_"
)

// PatternIssueKey returns the issue kind for a matched failure pattern,
// e.g. "pattern_NullPointerException".
func PatternIssueKey(patternType string) string {
	return patternIssuePrefix + patternType
}

// FixIssueKey returns the issue kind for the n-th suggested fix of a
// pattern type, e.g. "fix_NullPointerException_0".
func FixIssueKey(patternType string, n int) string {
	return fmt.Sprintf("%s%s_%d", fixIssuePrefix, patternType, n)
}

// AnalysisResult maps issue kinds to detail strings.
//
// # Description
//
// Produced by the diagnosis engine and consumed within a single heal
// cycle; never persisted. An empty result is represented by the single
// IssueCompleteRegeneration entry, set by the engine when no specific
// issue was detected.
//
// # Thread Safety
//
// NOT safe for concurrent use; results are built and read by one
// pipeline goroutine.
type AnalysisResult struct {
	// Issues maps issue kind to one or more detail strings.
	Issues map[string][]string `json:"issues"`
}

// NewAnalysisResult returns an empty result ready for Add calls.
func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{Issues: make(map[string][]string)}
}

// Add appends a detail string under the given issue kind.
func (r *AnalysisResult) Add(kind, detail string) {
	r.Issues[kind] = append(r.Issues[kind], detail)
}

// Has reports whether any detail was recorded under the kind.
func (r *AnalysisResult) Has(kind string) bool {
	return len(r.Issues[kind]) > 0
}

// Details returns the detail strings recorded under the kind.
func (r *AnalysisResult) Details(kind string) []string {
	return r.Issues[kind]
}

// Empty reports whether no issues at all were recorded.
func (r *AnalysisResult) Empty() bool {
	return len(r.Issues) == 0
}

// RequiresRegeneration reports whether the heal pipeline must request a
// full regeneration instead of targeted patching.
func (r *AnalysisResult) RequiresRegeneration() bool {
	return r.Has(IssueCompleteRegeneration) || r.Has(IssueSignatureChanged)
}

// PatternTypes returns the sorted failure-pattern types attached to this
// result via pattern_<Type> entries.
func (r *AnalysisResult) PatternTypes() []string {
	var types []string
	for kind := range r.Issues {
		if t, ok := strings.CutPrefix(kind, patternIssuePrefix); ok {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// FixesFor returns the suggested fixes attached for a pattern type, in
// the order they were numbered.
func (r *AnalysisResult) FixesFor(patternType string) []string {
	var fixes []string
	for n := 0; ; n++ {
		details := r.Issues[FixIssueKey(patternType, n)]
		if len(details) == 0 {
			break
		}
		fixes = append(fixes, details...)
	}
	return fixes
}

// FailurePattern is a heuristically classified failure category with
// remediation guidance. See the patterns package for the registry.
type FailurePattern struct {
	// Type is the category name, e.g. "NullPointerException".
	Type string `json:"type"`

	// Description explains what the category means.
	Description string `json:"description"`

	// SuggestedFixes is the ordered remediation guidance.
	SuggestedFixes []string `json:"suggested_fixes"`
}
