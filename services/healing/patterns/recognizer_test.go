// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package patterns

import "testing"

func hasType(t *testing.T, types []string, want string) bool {
	t.Helper()
	for _, typ := range types {
		if typ == want {
			return true
		}
	}
	return false
}

func matchedTypes(rec *Recognizer, msg, stack string) []string {
	var types []string
	for _, m := range rec.Recognize(msg, stack) {
		types = append(types, m.Type)
	}
	return types
}

func TestRecognize_NullPointer(t *testing.T) {
	rec := NewRecognizer(nil)

	matches := rec.Recognize(
		"java.lang.NullPointerException: Cannot invoke \"String.length()\"",
		"at com.example.OrderServiceTest.testTotal(OrderServiceTest.java:42)",
	)

	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Type != "NullPointerException" {
		t.Errorf("type = %q, want NullPointerException", matches[0].Type)
	}
	if len(matches[0].SuggestedFixes) == 0 {
		t.Error("expected suggested fixes")
	}
}

func TestRecognize_MatchInStackTraceOnly(t *testing.T) {
	rec := NewRecognizer(nil)

	types := matchedTypes(rec, "test failed",
		"java.lang.ArrayIndexOutOfBoundsException: Index 3 out of bounds for length 2")
	if !hasType(t, types, "IndexOutOfBoundsException") {
		t.Errorf("types = %v, want IndexOutOfBoundsException", types)
	}
}

func TestRecognize_MultiplePatterns(t *testing.T) {
	rec := NewRecognizer(nil)

	// AssertionError message that also mentions a null pointer: both
	// categories must match.
	types := matchedTypes(rec,
		"java.lang.AssertionError: expected:<42> but was caused by NullPointerException", "")

	if !hasType(t, types, "AssertionError") || !hasType(t, types, "NullPointerException") {
		t.Errorf("types = %v, want both AssertionError and NullPointerException", types)
	}
}

func TestRecognize_CaseInsensitive(t *testing.T) {
	rec := NewRecognizer(nil)

	types := matchedTypes(rec, "CLASSCASTEXCEPTION somewhere", "")
	if !hasType(t, types, "ClassCastException") {
		t.Errorf("types = %v, want ClassCastException", types)
	}
}

func TestRecognize_EmptyInput(t *testing.T) {
	rec := NewRecognizer(nil)

	if matches := rec.Recognize("", ""); matches != nil {
		t.Errorf("expected nil matches for empty input, got %v", matches)
	}
}

func TestRecognize_NoMatch(t *testing.T) {
	rec := NewRecognizer(nil)

	if matches := rec.Recognize("some completely unrelated failure", ""); matches != nil {
		t.Errorf("expected nil matches, got %v", matches)
	}
}

func TestRegistry_RegisterCustomPattern(t *testing.T) {
	reg := DefaultRegistry()
	before := reg.Len()

	err := reg.Register(Pattern{
		Type:           "StaleElement",
		Description:    "A UI element reference went stale",
		Keywords:       []string{"staleelementreference"},
		SuggestedFixes: []string{"re-locate the element before interacting"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Len() != before+1 {
		t.Errorf("len = %d, want %d", reg.Len(), before+1)
	}

	// Existing callers see the new category without changes.
	rec := NewRecognizer(reg)
	types := matchedTypes(rec, "StaleElementReferenceException: element is not attached", "")
	if !hasType(t, types, "StaleElement") {
		t.Errorf("types = %v, want StaleElement", types)
	}
}

func TestRegistry_RegisterReplacesSameType(t *testing.T) {
	reg := NewRegistry()
	p := Pattern{
		Type:           "Timeout",
		Description:    "first",
		Keywords:       []string{"timed out"},
		SuggestedFixes: []string{"fix one"},
	}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	p.Description = "second"
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register replacement: %v", err)
	}

	if reg.Len() != 1 {
		t.Fatalf("len = %d, want 1", reg.Len())
	}
	if got := reg.Patterns()[0].Description; got != "second" {
		t.Errorf("description = %q, want %q", got, "second")
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name    string
		pattern Pattern
		wantErr error
	}{
		{"missing type", Pattern{Keywords: []string{"x"}, SuggestedFixes: []string{"y"}}, ErrEmptyType},
		{"missing keywords", Pattern{Type: "X", SuggestedFixes: []string{"y"}}, ErrNoKeywords},
		{"missing fixes", Pattern{Type: "X", Keywords: []string{"x"}}, ErrNoFixes},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := reg.Register(tc.pattern); err != tc.wantErr {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
