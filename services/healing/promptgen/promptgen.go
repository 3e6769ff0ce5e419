// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package promptgen builds the LLM prompts used to (re)generate tests.
//
// Every prompt embeds the target method's signature behind a fixed
// marker line. That marker is load-bearing: diagnosis reads the
// signature back out of a test's recorded GenerationPrompt to decide
// whether the production method changed underneath the test.
package promptgen

import (
	"fmt"
	"strings"

	"github.com/mendhq/mend/services/healing/model"
)

// signatureMarker prefixes the embedded target signature in every
// generated prompt. RecordedSignature depends on this exact text.
const signatureMarker = "Target signature:"

// BuildGenerationPrompt builds the prompt for generating a fresh test
// for a production method.
func BuildGenerationPrompt(snapshot model.MethodSnapshot) string {
	var b strings.Builder

	b.WriteString("Generate a complete JUnit test class for the following Java method.\n\n")
	fmt.Fprintf(&b, "%s %s\n", signatureMarker, snapshot.Signature())
	fmt.Fprintf(&b, "Declared in: %s\n\n", snapshot.QualifiedName())

	if snapshot.Body != "" {
		b.WriteString("Method body:\n")
		b.WriteString(snapshot.Body)
		b.WriteString("\n\n")
	}

	writeInstructions(&b, nil)
	return b.String()
}

// BuildHealingPrompt builds the prompt for regenerating a broken test.
//
// # Description
//
// The prompt carries the current target signature, the broken test
// source, the diagnosed issues grouped by category, and per-pattern
// remediation guidance, followed by the standing generation
// instructions.
//
// # Inputs
//
//   - test: The broken test. Its SourceCode is quoted verbatim.
//   - snapshot: The target method's current state.
//   - analysis: Diagnosis output. May be nil when unavailable.
func BuildHealingPrompt(test *model.TestCase, snapshot model.MethodSnapshot, analysis *model.AnalysisResult) string {
	var b strings.Builder

	b.WriteString("The following JUnit test is broken and must be regenerated so it passes against the current production code.\n\n")
	fmt.Fprintf(&b, "%s %s\n", signatureMarker, snapshot.Signature())
	fmt.Fprintf(&b, "Declared in: %s\n\n", snapshot.QualifiedName())

	b.WriteString("Broken test source:\n")
	b.WriteString(test.SourceCode)
	if !strings.HasSuffix(test.SourceCode, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if analysis != nil && !analysis.Empty() {
		writeIssues(&b, analysis)
	}

	writeInstructions(&b, analysis)
	return b.String()
}

// writeIssues renders diagnosed issues and pattern guidance.
func writeIssues(b *strings.Builder, analysis *model.AnalysisResult) {
	categories := []struct {
		kind  string
		label string
	}{
		{model.IssueSignatureChanged, "The target method's signature changed"},
		{model.IssueMissingImports, "Missing imports"},
		{model.IssueInvalidAssertions, "Invalid assertions"},
		{model.IssueRenamedElements, "Renamed elements"},
		{model.IssueError, "Diagnosis errors"},
	}

	wroteHeader := false
	for _, cat := range categories {
		details := analysis.Details(cat.kind)
		if len(details) == 0 {
			continue
		}
		if !wroteHeader {
			b.WriteString("Diagnosed issues:\n")
			wroteHeader = true
		}
		for _, d := range details {
			fmt.Fprintf(b, "- %s: %s\n", cat.label, d)
		}
	}
	if wroteHeader {
		b.WriteString("\n")
	}

	for _, patternType := range analysis.PatternTypes() {
		fixes := analysis.FixesFor(patternType)
		if len(fixes) == 0 {
			continue
		}
		fmt.Fprintf(b, "The failure matches the %s pattern. Apply these fixes:\n", patternType)
		for _, fix := range fixes {
			fmt.Fprintf(b, "- %s\n", fix)
		}
		b.WriteString("\n")
	}
}

// writeInstructions renders the standing generation rules, plus
// pattern-specific guidance when applicable.
func writeInstructions(b *strings.Builder, analysis *model.AnalysisResult) {
	b.WriteString("Instructions:\n")
	b.WriteString("- Return only the complete Java test class, no explanation or markdown fences.\n")
	b.WriteString("- Use JUnit 5 annotations and assertions.\n")
	b.WriteString("- Call the target method exactly as its signature declares it.\n")
	b.WriteString("- Cover the happy path plus at least one edge case.\n")

	if analysis == nil {
		return
	}
	for _, patternType := range analysis.PatternTypes() {
		switch patternType {
		case "NullPointerException":
			b.WriteString("- Initialize every collaborator before use; no assertion may dereference a possibly-null value.\n")
		case "AssertionError":
			b.WriteString("- Re-derive every expected value from the current method body instead of reusing the old expectations.\n")
		case "IndexOutOfBoundsException":
			b.WriteString("- Check collection sizes before indexed access in the test.\n")
		}
	}
}

// RecordedSignature extracts the target signature a prompt was built
// with.
//
// Returns the text after the marker on the marker's line, trimmed, and
// false when the prompt carries no marker. Prompts built by this
// package always carry one.
func RecordedSignature(prompt string) (string, bool) {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, signatureMarker); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}
