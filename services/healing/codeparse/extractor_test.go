// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package codeparse

import (
	"context"
	"errors"
	"testing"

	"github.com/mendhq/mend/services/healing/model"
)

const calculatorSource = `package com.example.math;

import java.util.List;

public class Calculator {

    public static int divide(int a, int b) throws ArithmeticException {
        return a / b;
    }

    private double sum(List<Double> values) {
        double total = 0;
        for (double v : values) {
            total += v;
        }
        return total;
    }

    void reset() {
    }
}
`

func extract(t *testing.T, source string) map[string]model.MethodSnapshot {
	t.Helper()
	methods, err := NewJavaExtractor().ExtractMethods(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("ExtractMethods: %v", err)
	}
	return methods
}

func TestExtractMethods_Calculator(t *testing.T) {
	methods := extract(t, calculatorSource)

	if len(methods) != 3 {
		t.Fatalf("extracted %d methods, want 3: %v", len(methods), methods)
	}

	divide, ok := methods["divide"]
	if !ok {
		t.Fatal("missing divide")
	}
	if divide.PackageName != "com.example.math" {
		t.Errorf("package = %q, want com.example.math", divide.PackageName)
	}
	if divide.ClassName != "Calculator" {
		t.Errorf("class = %q, want Calculator", divide.ClassName)
	}
	if divide.ReturnType != "int" {
		t.Errorf("return type = %q, want int", divide.ReturnType)
	}
	if divide.Visibility != "public" || !divide.Static {
		t.Errorf("modifiers = %q static=%v, want public static", divide.Visibility, divide.Static)
	}
	if len(divide.Parameters) != 2 ||
		divide.Parameters[0] != (model.Parameter{Type: "int", Name: "a"}) ||
		divide.Parameters[1] != (model.Parameter{Type: "int", Name: "b"}) {
		t.Errorf("parameters = %v", divide.Parameters)
	}
	if len(divide.Exceptions) != 1 || divide.Exceptions[0] != "ArithmeticException" {
		t.Errorf("exceptions = %v", divide.Exceptions)
	}

	sum, ok := methods["sum"]
	if !ok {
		t.Fatal("missing sum")
	}
	if sum.ReturnType != "double" || sum.Visibility != "private" || sum.Static {
		t.Errorf("sum = %+v", sum)
	}
	if len(sum.Parameters) != 1 || sum.Parameters[0].Type != "List<Double>" {
		t.Errorf("sum parameters = %v", sum.Parameters)
	}

	reset, ok := methods["reset"]
	if !ok {
		t.Fatal("missing reset")
	}
	if reset.ReturnType != "void" {
		t.Errorf("reset return type = %q, want void", reset.ReturnType)
	}
}

func TestExtractMethods_SignatureRendering(t *testing.T) {
	methods := extract(t, calculatorSource)

	got := methods["divide"].Signature()
	want := "public static int divide(int a, int b) throws ArithmeticException"
	if got != want {
		t.Errorf("signature = %q, want %q", got, want)
	}
}

func TestExtractMethods_StructuralChange(t *testing.T) {
	before := extract(t, `
public class Calculator {
    public int foo(int a) { return a; }
}
`)
	after := extract(t, `
public class Calculator {
    public int foo(int a, int b) { return a + b; }
}
`)

	// Keyed by name: the overload-shaped change lands on the same key.
	b, a := before["foo"], after["foo"]
	if b.Key() != a.Key() {
		t.Fatalf("keys differ: %q vs %q", b.Key(), a.Key())
	}
	if b.StructurallyEqual(a) {
		t.Error("expected parameter change to break structural equality")
	}
}

func TestExtractMethods_BodyChangeIsStructurallyEqual(t *testing.T) {
	before := extract(t, `
public class C {
    public int f(int x) { return x; }
}
`)
	after := extract(t, `
public class C {
    public int f(int y) { return y * 2; }
}
`)

	if !before["f"].StructurallyEqual(after["f"]) {
		t.Error("body and parameter-name changes must not break structural equality")
	}
}

func TestExtractMethods_NestedClass(t *testing.T) {
	methods := extract(t, `
public class Outer {
    public void outerMethod() {}

    static class Inner {
        int innerMethod() { return 1; }
    }
}
`)

	if methods["outerMethod"].ClassName != "Outer" {
		t.Errorf("outerMethod class = %q", methods["outerMethod"].ClassName)
	}
	if methods["innerMethod"].ClassName != "Inner" {
		t.Errorf("innerMethod class = %q", methods["innerMethod"].ClassName)
	}
}

func TestExtractMethods_TolerantOfBrokenSyntax(t *testing.T) {
	methods := extract(t, `
public class Broken {
    public void ok() {}
    public void bad( { syntax error here
}
`)

	if _, ok := methods["ok"]; !ok {
		t.Error("expected the intact method to survive broken siblings")
	}
}

func TestExtractMethods_InvalidInput(t *testing.T) {
	ctx := context.Background()
	extractor := NewJavaExtractor()

	if _, err := extractor.ExtractMethods(ctx, []byte{0xff, 0xfe}); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("err = %v, want ErrInvalidSource", err)
	}

	extractor.maxSourceSize = 4
	if _, err := extractor.ExtractMethods(ctx, []byte("public class X {}")); !errors.Is(err, ErrSourceTooLarge) {
		t.Errorf("err = %v, want ErrSourceTooLarge", err)
	}
}

func TestExtractMethods_EmptySource(t *testing.T) {
	methods := extract(t, "")
	if methods == nil || len(methods) != 0 {
		t.Errorf("methods = %v, want empty non-nil map", methods)
	}
}
