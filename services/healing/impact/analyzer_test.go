// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package impact

import (
	"context"
	"testing"

	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/repo"
)

func methodMap(snaps ...model.MethodSnapshot) map[string]model.MethodSnapshot {
	out := make(map[string]model.MethodSnapshot, len(snaps))
	for _, s := range snaps {
		out[s.Key()] = s
	}
	return out
}

func fooMethod(paramTypes ...string) model.MethodSnapshot {
	params := make([]model.Parameter, len(paramTypes))
	for i, t := range paramTypes {
		params[i] = model.Parameter{Type: t}
	}
	return model.MethodSnapshot{
		ClassName:  "Calculator",
		MethodName: "foo",
		ReturnType: "int",
		Parameters: params,
	}
}

func saveTest(t *testing.T, repository repo.TestRepository, id string, status model.TestStatus, targetMethod string) {
	t.Helper()
	err := repository.Save(context.Background(), &model.TestCase{
		ID:           id,
		Name:         "CalculatorTest." + id,
		Status:       status,
		TargetClass:  "Calculator",
		TargetMethod: targetMethod,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestAnalyzeImpact_ParameterAdded(t *testing.T) {
	repository := repo.NewMemoryRepository()
	saveTest(t, repository, "t1", model.StatusPassed, "foo")
	analyzer, err := NewAnalyzer(repository)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	// foo(int) becomes foo(int, int).
	impacted, err := analyzer.AnalyzeImpact(context.Background(), "Calculator",
		methodMap(fooMethod("int")), methodMap(fooMethod("int", "int")))
	if err != nil {
		t.Fatalf("AnalyzeImpact: %v", err)
	}

	if len(impacted) != 1 || impacted[0].ID != "t1" {
		t.Fatalf("impacted = %v, want [t1]", impacted)
	}
	if impacted[0].Status != model.StatusBroken {
		t.Errorf("status = %s, want BROKEN", impacted[0].Status)
	}

	stored, err := repository.FindByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status != model.StatusBroken {
		t.Errorf("persisted status = %s, want BROKEN", stored.Status)
	}
}

func TestAnalyzeImpact_MethodRemoved(t *testing.T) {
	repository := repo.NewMemoryRepository()
	saveTest(t, repository, "t1", model.StatusPassed, "foo")
	analyzer, _ := NewAnalyzer(repository)

	impacted, err := analyzer.AnalyzeImpact(context.Background(), "Calculator",
		methodMap(fooMethod("int")), methodMap())
	if err != nil {
		t.Fatalf("AnalyzeImpact: %v", err)
	}
	if len(impacted) != 1 {
		t.Errorf("impacted = %v, want one test", impacted)
	}
}

func TestAnalyzeImpact_BodyOnlyChangeHasNoEffect(t *testing.T) {
	repository := repo.NewMemoryRepository()
	saveTest(t, repository, "t1", model.StatusPassed, "foo")
	analyzer, _ := NewAnalyzer(repository)

	before := fooMethod("int")
	before.Body = "{ return a; }"
	after := fooMethod("int")
	after.Body = "{ return a * 2; }"

	impacted, err := analyzer.AnalyzeImpact(context.Background(), "Calculator",
		methodMap(before), methodMap(after))
	if err != nil {
		t.Fatalf("AnalyzeImpact: %v", err)
	}
	if len(impacted) != 0 {
		t.Errorf("impacted = %v, want none for a body-only change", impacted)
	}

	stored, _ := repository.FindByID(context.Background(), "t1")
	if stored.Status != model.StatusPassed {
		t.Errorf("status = %s, want untouched PASSED", stored.Status)
	}
}

func TestAnalyzeImpact_DeduplicatesAcrossMethods(t *testing.T) {
	repository := repo.NewMemoryRepository()
	// One test covers foo, another covers both changes via bar.
	saveTest(t, repository, "t1", model.StatusPassed, "foo")
	saveTest(t, repository, "t2", model.StatusFailed, "bar")
	analyzer, _ := NewAnalyzer(repository)

	bar := fooMethod("int")
	bar.MethodName = "bar"
	barChanged := bar
	barChanged.ReturnType = "long"

	impacted, err := analyzer.AnalyzeImpact(context.Background(), "Calculator",
		methodMap(fooMethod("int"), bar),
		methodMap(fooMethod("int", "int"), barChanged))
	if err != nil {
		t.Fatalf("AnalyzeImpact: %v", err)
	}

	if len(impacted) != 2 {
		t.Fatalf("impacted = %d tests, want 2", len(impacted))
	}
	// Sorted by id.
	if impacted[0].ID != "t1" || impacted[1].ID != "t2" {
		t.Errorf("order = [%s %s], want [t1 t2]", impacted[0].ID, impacted[1].ID)
	}
}

func TestAnalyzeImpact_GeneratedTestIsLeftAlone(t *testing.T) {
	repository := repo.NewMemoryRepository()
	saveTest(t, repository, "t1", model.StatusGenerated, "foo")
	analyzer, _ := NewAnalyzer(repository)

	impacted, err := analyzer.AnalyzeImpact(context.Background(), "Calculator",
		methodMap(fooMethod("int")), methodMap())
	if err != nil {
		t.Fatalf("AnalyzeImpact: %v", err)
	}
	if len(impacted) != 0 {
		t.Errorf("impacted = %v, want none: GENERATED never ran", impacted)
	}

	stored, _ := repository.FindByID(context.Background(), "t1")
	if stored.Status != model.StatusGenerated {
		t.Errorf("status = %s, want untouched GENERATED", stored.Status)
	}
}
