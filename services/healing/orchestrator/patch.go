// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mendhq/mend/services/healing/model"
)

// knownImports maps simple type names to their canonical import paths.
// Only types here can be patched in; unknown types force regeneration.
var knownImports = map[string]string{
	"List":        "java.util.List",
	"ArrayList":   "java.util.ArrayList",
	"Map":         "java.util.Map",
	"HashMap":     "java.util.HashMap",
	"Set":         "java.util.Set",
	"HashSet":     "java.util.HashSet",
	"Optional":    "java.util.Optional",
	"Arrays":      "java.util.Arrays",
	"Collections": "java.util.Collections",
	"BigDecimal":  "java.math.BigDecimal",
	"BigInteger":  "java.math.BigInteger",
	"Test":        "org.junit.jupiter.api.Test",
	"BeforeEach":  "org.junit.jupiter.api.BeforeEach",
	"Assertions":  "org.junit.jupiter.api.Assertions",
}

var missingTypeRe = regexp.MustCompile(`type (\w+) is referenced`)

// applyPatches applies the targeted fixes for the diagnosed issues to
// the test source.
//
// # Description
//
// Handles the patchable issue kinds: import insertion for known types
// and rename substitution when the target class resolves to exactly one
// surviving method. Invalid assertions are never patched in place; they
// force the regeneration fallback by leaving the source untouched.
//
// # Outputs
//
//   - string: The patched source; unchanged when nothing was patched.
//   - []string: One description per applied patch.
//   - bool: Whether at least one patch was applied.
func applyPatches(test *model.TestCase, analysis *model.AnalysisResult, targetMethods map[string]model.MethodSnapshot) (string, []string, bool) {
	source := test.SourceCode
	var steps []string

	source, imported := patchImports(source, analysis.Details(model.IssueMissingImports))
	steps = append(steps, imported...)

	if analysis.Has(model.IssueRenamedElements) {
		patched, step, ok := patchRename(source, test.TargetMethod, targetMethods)
		if ok {
			source = patched
			steps = append(steps, step)
		}
	}

	return source, steps, len(steps) > 0
}

// patchImports inserts import lines for known missing types.
func patchImports(source string, details []string) (string, []string) {
	var steps []string
	for _, detail := range details {
		m := missingTypeRe.FindStringSubmatch(detail)
		if m == nil {
			continue
		}
		path, ok := knownImports[m[1]]
		if !ok {
			continue
		}
		line := "import " + path + ";"
		if strings.Contains(source, line) {
			continue
		}
		source = insertImport(source, line)
		steps = append(steps, "inserted "+line)
	}
	return source, steps
}

// insertImport places an import line after the package declaration, or
// at the top when there is none.
func insertImport(source, line string) string {
	lines := strings.Split(source, "\n")
	at := 0
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "package ") {
			at = i + 1
			break
		}
	}
	out := make([]string, 0, len(lines)+2)
	out = append(out, lines[:at]...)
	if at > 0 {
		out = append(out, "")
	}
	out = append(out, line)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n")
}

// patchRename substitutes the vanished target method's name when the
// class now declares exactly one method.
func patchRename(source, oldMethod string, targetMethods map[string]model.MethodSnapshot) (string, string, bool) {
	if oldMethod == "" || len(targetMethods) != 1 {
		return source, "", false
	}
	var newMethod string
	for name := range targetMethods {
		newMethod = name
	}
	if newMethod == oldMethod || !strings.Contains(source, oldMethod+"(") {
		return source, "", false
	}
	patched := strings.ReplaceAll(source, oldMethod+"(", newMethod+"(")
	return patched, fmt.Sprintf("renamed call sites %s -> %s", oldMethod, newMethod), true
}
