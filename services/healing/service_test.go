// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package healing

import (
	"context"
	"testing"

	"github.com/mendhq/mend/services/healing/execute"
	"github.com/mendhq/mend/services/healing/generate"
	"github.com/mendhq/mend/services/healing/history"
	"github.com/mendhq/mend/services/healing/model"
	"github.com/mendhq/mend/services/healing/repo"
)

const calculatorV1 = `package com.example.math;

public class Calculator {
    public int divide(int a, int b) {
        return a / b;
    }
}
`

const calculatorV2 = `package com.example.math;

public class Calculator {
    public int divide(int a, int b, boolean strict) {
        if (strict && b == 0) throw new IllegalArgumentException("b");
        return a / b;
    }
}
`

type fakeGenerator struct {
	source string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, params generate.GenerationParams) (string, error) {
	return f.source, f.err
}

type fakeRunner struct {
	passed bool
}

func (f *fakeRunner) Execute(ctx context.Context, test *model.TestCase) (execute.ExecutionResult, error) {
	return execute.ExecutionResult{TestID: test.ID, Passed: f.passed, DurationMillis: 5}, nil
}

func newService(t *testing.T, generator *fakeGenerator, runner *fakeRunner) (*Service, *repo.MemoryRepository) {
	t.Helper()
	repository := repo.NewMemoryRepository()
	svc, err := NewService(repository, history.NewMemoryStore(), generator, runner, DefaultServiceConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repository
}

func TestAnalyzeImpactSources_EndToEnd(t *testing.T) {
	svc, repository := newService(t, &fakeGenerator{source: "regenerated"}, &fakeRunner{passed: true})
	ctx := context.Background()

	err := repository.Save(ctx, &model.TestCase{
		ID:           "t1",
		Name:         "CalculatorTest.testDivide",
		Status:       model.StatusPassed,
		TargetClass:  "Calculator",
		TargetMethod: "divide",
		SourceCode:   "public class CalculatorTest {}",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	impacted, changed, err := svc.AnalyzeImpactSources(ctx, "Calculator",
		[]byte(calculatorV1), []byte(calculatorV2))
	if err != nil {
		t.Fatalf("AnalyzeImpactSources: %v", err)
	}

	if changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}
	if len(impacted) != 1 || impacted[0].ID != "t1" {
		t.Fatalf("impacted = %v, want [t1]", impacted)
	}
	if impacted[0].Status != model.StatusBroken {
		t.Errorf("status = %s, want BROKEN", impacted[0].Status)
	}

	// The index now carries the post-change signature, so a heal can
	// resolve it immediately.
	healed, err := svc.HealTest(ctx, "t1")
	if err != nil {
		t.Fatalf("HealTest: %v", err)
	}
	if healed.Status != model.StatusPassed {
		t.Errorf("healed status = %s, want PASSED", healed.Status)
	}
}

func TestAnalyzeImpactSources_BodyOnlyChange(t *testing.T) {
	svc, repository := newService(t, &fakeGenerator{}, &fakeRunner{})
	ctx := context.Background()
	repository.Save(ctx, &model.TestCase{
		ID: "t1", Status: model.StatusPassed,
		TargetClass: "Calculator", TargetMethod: "divide",
	})

	bodyChange := []byte(`package com.example.math;

public class Calculator {
    public int divide(int a, int b) {
        return b == 0 ? 0 : a / b;
    }
}
`)
	impacted, changed, err := svc.AnalyzeImpactSources(ctx, "Calculator",
		[]byte(calculatorV1), bodyChange)
	if err != nil {
		t.Fatalf("AnalyzeImpactSources: %v", err)
	}
	if changed != 0 || len(impacted) != 0 {
		t.Errorf("changed=%d impacted=%v, want no effect for body-only change", changed, impacted)
	}
}

func TestRecordExecution_AdvancesGeneratedTest(t *testing.T) {
	svc, repository := newService(t, &fakeGenerator{}, &fakeRunner{})
	ctx := context.Background()
	repository.Save(ctx, &model.TestCase{ID: "t1", Name: "n", Status: model.StatusGenerated})

	h, err := svc.RecordExecution(ctx, "t1", model.ExecutionRecord{Passed: false, ErrorMessage: "boom"})
	if err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}
	if h.FailedExecutions != 1 {
		t.Errorf("failed executions = %d, want 1", h.FailedExecutions)
	}

	stored, _ := repository.FindByID(ctx, "t1")
	if stored.Status != model.StatusFailed {
		t.Errorf("status = %s, want FAILED", stored.Status)
	}
}

func TestRecordExecution_InvalidTransitionKeepsStatus(t *testing.T) {
	svc, repository := newService(t, &fakeGenerator{}, &fakeRunner{})
	ctx := context.Background()
	// BROKEN cannot move to PASSED without going through HEALED.
	repository.Save(ctx, &model.TestCase{ID: "t1", Status: model.StatusBroken})

	if _, err := svc.RecordExecution(ctx, "t1", model.ExecutionRecord{Passed: true}); err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}

	stored, _ := repository.FindByID(ctx, "t1")
	if stored.Status != model.StatusBroken {
		t.Errorf("status = %s, want BROKEN preserved", stored.Status)
	}

	h, exists, _ := svc.History(ctx, "t1")
	if !exists || h.TotalExecutions != 1 {
		t.Error("execution must still land in history")
	}
}

func TestRecordExecution_UnknownTest(t *testing.T) {
	svc, _ := newService(t, &fakeGenerator{}, &fakeRunner{})

	if _, err := svc.RecordExecution(context.Background(), "ghost", model.ExecutionRecord{}); err == nil {
		t.Fatal("expected error for unknown test")
	}
}

func TestListTests_StatusFilter(t *testing.T) {
	svc, repository := newService(t, &fakeGenerator{}, &fakeRunner{})
	ctx := context.Background()
	repository.Save(ctx, &model.TestCase{ID: "t1", Status: model.StatusBroken})
	repository.Save(ctx, &model.TestCase{ID: "t2", Status: model.StatusPassed})

	broken, err := svc.ListTests(ctx, model.StatusBroken)
	if err != nil {
		t.Fatalf("ListTests: %v", err)
	}
	if len(broken) != 1 || broken[0].ID != "t1" {
		t.Errorf("broken = %v, want [t1]", broken)
	}

	all, err := svc.ListTests(ctx, "")
	if err != nil {
		t.Fatalf("ListTests: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}

	if _, err := svc.ListTests(ctx, "NONSENSE"); err == nil {
		t.Error("expected error for unknown status filter")
	}
}
