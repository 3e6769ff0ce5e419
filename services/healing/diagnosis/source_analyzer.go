// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diagnosis

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mendhq/mend/services/healing/codeparse"
	"github.com/mendhq/mend/services/healing/model"
)

// SourceAnalyzer inspects a test's source against the target class's
// current methods and records structural issues.
type SourceAnalyzer interface {
	// AnalyzeSource appends missingImports, invalidAssertions, and
	// renamedElements entries to the result. targetMethods is the
	// current method map of the test's target class; it may be nil when
	// the class was never indexed.
	AnalyzeSource(ctx context.Context, test *model.TestCase, targetMethods map[string]model.MethodSnapshot, result *model.AnalysisResult) error
}

// javaLangTypes are resolvable without an import.
var javaLangTypes = map[string]bool{
	"String": true, "Object": true, "Integer": true, "Long": true,
	"Double": true, "Float": true, "Boolean": true, "Byte": true,
	"Short": true, "Character": true, "Number": true, "Math": true,
	"System": true, "Thread": true, "Runnable": true, "Iterable": true,
	"Exception": true, "RuntimeException": true, "Error": true,
	"Throwable": true, "IllegalArgumentException": true,
	"IllegalStateException": true, "NullPointerException": true,
	"ArithmeticException": true, "ClassCastException": true,
	"IndexOutOfBoundsException": true, "NumberFormatException": true,
	"StringBuilder": true, "CharSequence": true, "Comparable": true,
	"Override": true, "Deprecated": true, "SuppressWarnings": true,
}

// TreeAnalyzer is the tree-sitter backed SourceAnalyzer for Java tests.
//
// # Description
//
// All three checks are heuristic, resolved purely from the syntax tree
// without a classpath:
//
//   - missingImports: a type referenced in the test that is neither
//     imported, declared locally, nor a java.lang default. Suppressed
//     entirely when the test uses a wildcard import.
//   - invalidAssertions: a call of the form TargetClass.method(...)
//     where the target class no longer declares that method.
//   - renamedElements: the test's recorded target method is gone from
//     the target class while other methods remain — the likely cause is
//     a rename rather than a removal.
//
// # Thread Safety
//
// Safe for concurrent use; no state beyond the method arguments.
type TreeAnalyzer struct{}

// NewTreeAnalyzer creates a TreeAnalyzer.
func NewTreeAnalyzer() *TreeAnalyzer {
	return &TreeAnalyzer{}
}

// AnalyzeSource runs the three structural checks over the test source.
func (a *TreeAnalyzer) AnalyzeSource(ctx context.Context, test *model.TestCase, targetMethods map[string]model.MethodSnapshot, result *model.AnalysisResult) error {
	source := []byte(test.SourceCode)
	tree, err := codeparse.ParseSource(ctx, source)
	if err != nil {
		return fmt.Errorf("parse test source: %w", err)
	}
	defer tree.Close()
	root := tree.RootNode()

	a.checkImports(root, source, test, result)

	if targetMethods != nil {
		a.checkInvocations(root, source, test, targetMethods, result)
		a.checkRenamed(test, targetMethods, result)
	}
	return nil
}

// checkImports flags referenced types with no visible import.
func (a *TreeAnalyzer) checkImports(root *sitter.Node, source []byte, test *model.TestCase, result *model.AnalysisResult) {
	imported := make(map[string]bool)
	wildcard := false

	codeparse.Walk(root, func(node *sitter.Node) bool {
		if node.Type() != "import_declaration" {
			return true
		}
		text := node.Content(source)
		if strings.Contains(text, "*") {
			wildcard = true
			return false
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
				for _, part := range strings.Split(child.Content(source), ".") {
					imported[part] = true
				}
			}
		}
		return false
	})
	if wildcard {
		return
	}

	local := make(map[string]bool)
	codeparse.Walk(root, func(node *sitter.Node) bool {
		if node.Type() == "class_declaration" {
			if name := node.ChildByFieldName("name"); name != nil {
				local[name.Content(source)] = true
			}
		}
		return true
	})

	seen := make(map[string]bool)
	codeparse.Walk(root, func(node *sitter.Node) bool {
		if node.Type() != "type_identifier" {
			return true
		}
		name := node.Content(source)
		if seen[name] || imported[name] || local[name] || javaLangTypes[name] || name == test.TargetClass {
			return true
		}
		seen[name] = true
		result.Add(model.IssueMissingImports, fmt.Sprintf("type %s is referenced but never imported", name))
		return true
	})
}

// checkInvocations flags static-style calls against methods the target
// class no longer declares.
func (a *TreeAnalyzer) checkInvocations(root *sitter.Node, source []byte, test *model.TestCase, targetMethods map[string]model.MethodSnapshot, result *model.AnalysisResult) {
	codeparse.Walk(root, func(node *sitter.Node) bool {
		if node.Type() != "method_invocation" {
			return true
		}
		object := node.ChildByFieldName("object")
		name := node.ChildByFieldName("name")
		if object == nil || name == nil || object.Content(source) != test.TargetClass {
			return true
		}
		method := name.Content(source)
		if _, ok := targetMethods[method]; !ok {
			result.Add(model.IssueInvalidAssertions,
				fmt.Sprintf("call to %s.%s but the class no longer declares %s", test.TargetClass, method, method))
		}
		return true
	})
}

// checkRenamed flags a vanished target method on a class that still
// declares others.
func (a *TreeAnalyzer) checkRenamed(test *model.TestCase, targetMethods map[string]model.MethodSnapshot, result *model.AnalysisResult) {
	if test.TargetMethod == "" || len(targetMethods) == 0 {
		return
	}
	if _, ok := targetMethods[test.TargetMethod]; !ok {
		result.Add(model.IssueRenamedElements,
			fmt.Sprintf("target method %s is gone from %s; it may have been renamed", test.TargetMethod, test.TargetClass))
	}
}
