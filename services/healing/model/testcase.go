// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package model defines the core data types of the test healing engine.
//
// The types here are plain values shared between the impact analyzer,
// the diagnosis engine, the history tracker, and the orchestrator.
// None of them carry behavior beyond derived accessors; all persistence
// and mutation goes through the repository and tracker packages.
package model

import "time"

// TestStatus is the lifecycle state of a generated test case.
//
// Transitions:
//
//	GENERATED        -> PASSED | FAILED   (first execution)
//	PASSED | FAILED  -> BROKEN            (change impact)
//	BROKEN | FAILED  -> HEALED            (successful patch or regeneration)
//	HEALED           -> PASSED | BROKEN   (post-heal verification)
//
// There is no terminal state; any status can re-enter BROKEN when the
// target source changes again.
type TestStatus string

const (
	StatusGenerated TestStatus = "GENERATED"
	StatusPassed    TestStatus = "PASSED"
	StatusFailed    TestStatus = "FAILED"
	StatusBroken    TestStatus = "BROKEN"
	StatusHealed    TestStatus = "HEALED"
)

// Healable reports whether a test in this status is eligible for healing.
//
// Only BROKEN and FAILED tests enter the heal pipeline; healing any other
// status is a no-op by contract.
func (s TestStatus) Healable() bool {
	return s == StatusBroken || s == StatusFailed
}

// Valid reports whether s is one of the known lifecycle states.
func (s TestStatus) Valid() bool {
	switch s {
	case StatusGenerated, StatusPassed, StatusFailed, StatusBroken, StatusHealed:
		return true
	}
	return false
}

// ValidTransition reports whether moving from one status to another is
// allowed by the lifecycle state machine.
//
// The same-status "transition" is permitted so idempotent saves do not
// need special casing.
func ValidTransition(from, to TestStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusGenerated:
		return to == StatusPassed || to == StatusFailed
	case StatusPassed:
		return to == StatusBroken
	case StatusFailed:
		return to == StatusBroken || to == StatusHealed
	case StatusBroken:
		return to == StatusHealed
	case StatusHealed:
		return to == StatusPassed || to == StatusBroken
	}
	return false
}

// TestCase is a generated test with its link back to the production
// method it covers.
//
// # Description
//
// The repository owns TestCase records; the healing engine mutates only
// Status, SourceCode, GenerationPrompt and ModifiedAt through repository
// saves. The target identifiers (TargetClass, TargetMethod) tie the test
// to the production method whose structural changes break it.
type TestCase struct {
	// ID is the unique identifier of the test case.
	ID string `json:"id"`

	// Name is the human-readable test name.
	Name string `json:"name"`

	// Status is the current lifecycle state.
	Status TestStatus `json:"status"`

	// PackageName is the package of the test class.
	PackageName string `json:"package_name"`

	// ClassName is the test class name.
	ClassName string `json:"class_name"`

	// MethodName is the test method name.
	MethodName string `json:"method_name"`

	// TargetClass is the production class under test.
	TargetClass string `json:"target_class"`

	// TargetMethod is the production method under test.
	TargetMethod string `json:"target_method"`

	// SourceCode is the full test source text.
	SourceCode string `json:"source_code"`

	// GenerationPrompt is the prompt the test was generated (or last
	// regenerated) from. The diagnosis engine recovers the signature
	// recorded at generation time from this text.
	GenerationPrompt string `json:"generation_prompt"`

	// Assertions lists the assertion expressions the test was generated with.
	Assertions []string `json:"assertions,omitempty"`

	// CreatedAt is when the test was first persisted.
	CreatedAt time.Time `json:"created_at"`

	// ModifiedAt is when the test was last saved.
	ModifiedAt time.Time `json:"modified_at"`
}
