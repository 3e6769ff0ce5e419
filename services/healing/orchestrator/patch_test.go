// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"strings"
	"testing"

	"github.com/mendhq/mend/services/healing/model"
)

func TestPatchImports_InsertsAfterPackage(t *testing.T) {
	source := "package com.example;\n\npublic class T {}"
	patched, steps := patchImports(source, []string{"type BigDecimal is referenced but never imported"})

	if len(steps) != 1 {
		t.Fatalf("steps = %v, want one", steps)
	}
	lines := strings.Split(patched, "\n")
	if lines[0] != "package com.example;" {
		t.Errorf("package line moved: %q", lines[0])
	}
	if !strings.Contains(patched, "import java.math.BigDecimal;") {
		t.Errorf("import missing:\n%s", patched)
	}
	if strings.Index(patched, "import") > strings.Index(patched, "class T") {
		t.Error("import inserted after the class declaration")
	}
}

func TestPatchImports_UnknownTypeSkipped(t *testing.T) {
	source := "public class T {}"
	patched, steps := patchImports(source, []string{"type MyObscureHelper is referenced but never imported"})

	if len(steps) != 0 || patched != source {
		t.Errorf("unknown type must not be patched: steps=%v", steps)
	}
}

func TestPatchRename_SingleSurvivor(t *testing.T) {
	methods := map[string]model.MethodSnapshot{
		"quotient": {MethodName: "quotient"},
	}
	source := "Calculator.divide(4, 2); other.divide(1, 1);"

	patched, step, ok := patchRename(source, "divide", methods)
	if !ok {
		t.Fatal("expected a rename patch")
	}
	if strings.Contains(patched, "divide(") {
		t.Errorf("old name survives: %q", patched)
	}
	if !strings.Contains(patched, "quotient(") {
		t.Errorf("new name missing: %q", patched)
	}
	if !strings.Contains(step, "divide") || !strings.Contains(step, "quotient") {
		t.Errorf("step = %q", step)
	}
}

func TestPatchRename_AmbiguousClassSkipped(t *testing.T) {
	methods := map[string]model.MethodSnapshot{
		"quotient":  {MethodName: "quotient"},
		"remainder": {MethodName: "remainder"},
	}

	if _, _, ok := patchRename("Calculator.divide(4, 2);", "divide", methods); ok {
		t.Error("ambiguous rename must not be patched")
	}
}

func TestApplyPatches_InvalidAssertionsAloneForceFallback(t *testing.T) {
	analysis := model.NewAnalysisResult()
	analysis.Add(model.IssueInvalidAssertions, "call to Calculator.modulo but the class no longer declares modulo")

	test := &model.TestCase{SourceCode: "Calculator.modulo(1, 2);"}
	methods := map[string]model.MethodSnapshot{
		"divide": {MethodName: "divide"},
		"modulo": {MethodName: "remainder"},
	}

	if _, _, ok := applyPatches(test, analysis, methods); ok {
		t.Error("invalid assertions are not patchable in place")
	}
}
