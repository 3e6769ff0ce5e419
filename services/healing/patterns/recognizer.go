// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package patterns

import (
	"strings"

	"github.com/mendhq/mend/services/healing/model"
)

// Recognizer classifies a runtime failure against a pattern registry.
//
// # Description
//
// Stateless apart from the registry reference: recognition is a pure
// function of the failure text. Every registered pattern whose keywords
// hit the combined text yields one match, so a single failure can carry
// several categories (an AssertionError message that mentions a null
// value matches both).
//
// # Thread Safety
//
// Safe for concurrent use.
type Recognizer struct {
	registry *Registry
}

// NewRecognizer creates a recognizer over the given registry.
// A nil registry falls back to the built-in defaults.
func NewRecognizer(registry *Registry) *Recognizer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Recognizer{registry: registry}
}

// Recognize matches the failure text against every registered pattern.
//
// # Inputs
//
//   - errorMessage: Raw failure message. May be empty.
//   - stackTrace: Raw stack trace text. May be empty.
//
// # Outputs
//
//   - []model.FailurePattern: One entry per matched pattern, in
//     registration order. Nil when nothing matched or both inputs are empty.
func (r *Recognizer) Recognize(errorMessage, stackTrace string) []model.FailurePattern {
	haystack := strings.ToLower(errorMessage + "\n" + stackTrace)
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	var matches []model.FailurePattern
	for _, p := range r.registry.Patterns() {
		if !matchesAny(haystack, p.Keywords) {
			continue
		}
		fixes := make([]string, len(p.SuggestedFixes))
		copy(fixes, p.SuggestedFixes)
		matches = append(matches, model.FailurePattern{
			Type:           p.Type,
			Description:    p.Description,
			SuggestedFixes: fixes,
		})
	}
	return matches
}

// matchesAny reports whether any keyword occurs in the haystack.
// Keywords are compared lowercase; registration does not enforce case.
func matchesAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
