// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package patterns classifies runtime test failures into known
// categories with remediation hints.
//
// Matching is heuristic keyword search over the raw error message and
// stack trace, not stack-frame analysis. Multiple patterns may match a
// single failure. The registry is pluggable: new categories can be
// registered without touching any caller.
package patterns

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for registry operations.
var (
	// ErrEmptyType indicates a pattern was registered without a type name.
	ErrEmptyType = errors.New("pattern type is required")

	// ErrNoKeywords indicates a pattern was registered without keywords.
	ErrNoKeywords = errors.New("pattern needs at least one keyword")

	// ErrNoFixes indicates a pattern was registered without suggested fixes.
	ErrNoFixes = errors.New("pattern needs at least one suggested fix")
)

// Pattern is a registered failure category.
type Pattern struct {
	// Type is the category name, e.g. "NullPointerException".
	Type string `json:"type"`

	// Description explains what failures in this category mean.
	Description string `json:"description"`

	// Keywords are matched case-insensitively against the combined
	// error message and stack trace. Any single hit matches the pattern.
	Keywords []string `json:"keywords"`

	// SuggestedFixes is the ordered remediation guidance.
	SuggestedFixes []string `json:"suggested_fixes"`
}

// Registry holds the known failure patterns.
//
// # Thread Safety
//
// Safe for concurrent use; Register may be called while Recognize runs.
type Registry struct {
	mu       sync.RWMutex
	patterns []Pattern
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry preloaded with the built-in
// categories covering the common Java runtime failures.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range builtinPatterns() {
		// Builtins are statically valid; Register cannot fail here.
		if err := r.Register(p); err != nil {
			panic(fmt.Sprintf("invalid builtin pattern %q: %v", p.Type, err))
		}
	}
	return r
}

// Register adds a pattern to the registry.
//
// # Inputs
//
//   - p: Pattern with a type, at least one keyword and one fix.
//
// # Outputs
//
//   - error: Non-nil when the pattern is structurally invalid. A pattern
//     with a type that is already registered replaces the existing entry.
func (r *Registry) Register(p Pattern) error {
	if p.Type == "" {
		return ErrEmptyType
	}
	if len(p.Keywords) == 0 {
		return ErrNoKeywords
	}
	if len(p.SuggestedFixes) == 0 {
		return ErrNoFixes
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.patterns {
		if r.patterns[i].Type == p.Type {
			r.patterns[i] = p
			return nil
		}
	}
	r.patterns = append(r.patterns, p)
	return nil
}

// Patterns returns a copy of the registered patterns in registration order.
func (r *Registry) Patterns() []Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pattern, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

// builtinPatterns returns the default failure categories.
func builtinPatterns() []Pattern {
	return []Pattern{
		{
			Type:        "NullPointerException",
			Description: "The test dereferenced a null object reference",
			Keywords:    []string{"nullpointerexception", "null pointer"},
			SuggestedFixes: []string{
				"add null checks before dereferencing objects",
				"verify mocks and stubs return non-null values",
				"initialize collaborators in a setup method before use",
			},
		},
		{
			Type:        "AssertionError",
			Description: "An assertion compared against a stale expected value",
			Keywords:    []string{"assertionerror", "assertion failed", "expected:"},
			SuggestedFixes: []string{
				"verify the expected value against current behavior",
				"use a floating-point delta when comparing doubles",
				"assert on stable fields instead of whole-object equality",
			},
		},
		{
			Type:        "IndexOutOfBoundsException",
			Description: "The test indexed past the end of an array or collection",
			Keywords:    []string{"indexoutofbounds", "arrayindexoutofbounds"},
			SuggestedFixes: []string{
				"check bounds before indexing",
				"verify the collection is non-empty before element access",
				"derive indices from the collection size instead of constants",
			},
		},
		{
			Type:        "ClassCastException",
			Description: "The test cast an object to an incompatible type",
			Keywords:    []string{"classcastexception", "cannot be cast to"},
			SuggestedFixes: []string{
				"check the runtime type with instanceof before casting",
				"update the expected type to match the current return type",
			},
		},
		{
			Type:        "NumberFormatException",
			Description: "The test parsed a string that is not a valid number",
			Keywords:    []string{"numberformatexception", "for input string"},
			SuggestedFixes: []string{
				"verify the input string is numeric before parsing",
				"update the fixture value to a parseable number",
			},
		},
		{
			Type:        "ArithmeticException",
			Description: "The test triggered an arithmetic fault such as division by zero",
			Keywords:    []string{"arithmeticexception", "/ by zero"},
			SuggestedFixes: []string{
				"guard divisions with a zero check",
				"use non-zero fixture values for divisors",
			},
		},
		{
			Type:        "MethodSignatureMismatch",
			Description: "The test calls a method whose signature no longer exists",
			Keywords: []string{
				"nosuchmethod",
				"cannot be applied to",
				"method not found",
				"incompatible types",
			},
			SuggestedFixes: []string{
				"regenerate the call with the current method signature",
				"update argument types and arity to match the target",
			},
		},
		{
			Type:        "Timeout",
			Description: "The test exceeded its execution time budget",
			Keywords:    []string{"timed out", "timeoutexception"},
			SuggestedFixes: []string{
				"raise the test timeout if the operation is legitimately slow",
				"stub slow collaborators instead of calling them directly",
			},
		},
	}
}
