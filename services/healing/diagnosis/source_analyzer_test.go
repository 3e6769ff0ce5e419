// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diagnosis

import (
	"context"
	"strings"
	"testing"

	"github.com/mendhq/mend/services/healing/model"
)

func analyze(t *testing.T, source string, targetMethods map[string]model.MethodSnapshot) *model.AnalysisResult {
	t.Helper()
	test := &model.TestCase{
		TargetClass:  "Calculator",
		TargetMethod: "divide",
		SourceCode:   source,
	}
	result := model.NewAnalysisResult()
	if err := NewTreeAnalyzer().AnalyzeSource(context.Background(), test, targetMethods, result); err != nil {
		t.Fatalf("AnalyzeSource: %v", err)
	}
	return result
}

func TestTreeAnalyzer_MissingImport(t *testing.T) {
	result := analyze(t, `
public class CalculatorTest {
    void test() {
        BigDecimal d = new BigDecimal("1.0");
    }
}
`, nil)

	details := result.Details(model.IssueMissingImports)
	if len(details) != 1 || !strings.Contains(details[0], "BigDecimal") {
		t.Errorf("missingImports = %v, want one BigDecimal entry", details)
	}
}

func TestTreeAnalyzer_ImportedTypeNotFlagged(t *testing.T) {
	result := analyze(t, `
import java.math.BigDecimal;

public class CalculatorTest {
    void test() {
        BigDecimal d = new BigDecimal("1.0");
        String s = "ok";
    }
}
`, nil)

	if result.Has(model.IssueMissingImports) {
		t.Errorf("unexpected missingImports: %v", result.Details(model.IssueMissingImports))
	}
}

func TestTreeAnalyzer_WildcardImportSuppressesCheck(t *testing.T) {
	result := analyze(t, `
import java.math.*;

public class CalculatorTest {
    void test() {
        BigDecimal d = new BigDecimal("1.0");
    }
}
`, nil)

	if result.Has(model.IssueMissingImports) {
		t.Errorf("wildcard import must suppress the check: %v", result.Details(model.IssueMissingImports))
	}
}

func TestTreeAnalyzer_InvalidAssertionOnlyForMissingMethods(t *testing.T) {
	methods := map[string]model.MethodSnapshot{
		"divide": {ClassName: "Calculator", MethodName: "divide"},
	}
	result := analyze(t, `
public class CalculatorTest {
    void test() {
        Calculator.divide(4, 2);
        Calculator.modulo(4, 2);
    }
}
`, methods)

	details := result.Details(model.IssueInvalidAssertions)
	if len(details) != 1 || !strings.Contains(details[0], "modulo") {
		t.Errorf("invalidAssertions = %v, want one modulo entry", details)
	}
}

func TestTreeAnalyzer_RenameDetection(t *testing.T) {
	methods := map[string]model.MethodSnapshot{
		"quotient": {ClassName: "Calculator", MethodName: "quotient"},
	}
	result := analyze(t, `public class CalculatorTest {}`, methods)

	if !result.Has(model.IssueRenamedElements) {
		t.Error("expected renamedElements when the target method vanished")
	}
}

func TestTreeAnalyzer_NoMethodMapSkipsClassChecks(t *testing.T) {
	result := analyze(t, `
public class CalculatorTest {
    void test() {
        Calculator.modulo(4, 2);
    }
}
`, nil)

	if result.Has(model.IssueInvalidAssertions) || result.Has(model.IssueRenamedElements) {
		t.Errorf("checks must be skipped without a method map: %v", result.Issues)
	}
}
