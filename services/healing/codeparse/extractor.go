// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package codeparse turns source text into structural method
// descriptors.
//
// This is the code-analysis collaborator of the healing engine. The
// shipped extractor handles Java via tree-sitter; the MethodExtractor
// interface keeps the rest of the engine language-agnostic.
package codeparse

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/mendhq/mend/services/healing/model"
)

// DefaultMaxSourceSize is the maximum source size the extractor accepts (10MB).
const DefaultMaxSourceSize = 10 * 1024 * 1024

// Sentinel errors for source extraction.
var (
	// ErrSourceTooLarge is returned when input exceeds the size limit.
	ErrSourceTooLarge = errors.New("source exceeds maximum size limit")

	// ErrInvalidSource is returned for content that is not valid UTF-8.
	ErrInvalidSource = errors.New("source is not valid UTF-8")
)

// MethodExtractor produces class-level method maps from source text.
type MethodExtractor interface {
	// ExtractMethods returns the methods declared in the source, keyed
	// by method name. Overloads collapse onto one key (last wins).
	ExtractMethods(ctx context.Context, source []byte) (map[string]model.MethodSnapshot, error)
}

// JavaExtractor extracts MethodSnapshots from Java source.
//
// # Thread Safety
//
// Safe for concurrent use; each call creates its own tree-sitter
// parser instance.
type JavaExtractor struct {
	maxSourceSize int64
}

// NewJavaExtractor creates an extractor with the default size limit.
func NewJavaExtractor() *JavaExtractor {
	return &JavaExtractor{maxSourceSize: DefaultMaxSourceSize}
}

// ExtractMethods parses Java source and returns its method snapshots.
//
// # Description
//
// Parsing is error-tolerant: syntactically broken source yields the
// methods tree-sitter could still recognize. Methods of every class in
// the compilation unit are collected; nested classes contribute their
// methods under their own class name.
//
// # Inputs
//
//   - ctx: Context for cancellation. Required.
//   - source: Raw Java source bytes. Must be valid UTF-8.
//
// # Outputs
//
//   - map[string]model.MethodSnapshot: Methods keyed by name. Empty map
//     (not nil) when the source declares none.
//   - error: Non-nil for nil context, oversized or non-UTF-8 input, or
//     tree-sitter failure.
func (e *JavaExtractor) ExtractMethods(ctx context.Context, source []byte) (map[string]model.MethodSnapshot, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if int64(len(source)) > e.maxSourceSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrSourceTooLarge, len(source))
	}
	if !utf8.Valid(source) {
		return nil, ErrInvalidSource
	}

	tree, err := ParseSource(ctx, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	methods := make(map[string]model.MethodSnapshot)
	pkg := extractPackageName(root, source)

	Walk(root, func(node *sitter.Node) bool {
		if node.Type() != "class_declaration" {
			return true
		}
		className := ""
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			className = nameNode.Content(source)
		}
		body := node.ChildByFieldName("body")
		if body == nil {
			return true
		}
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			if child.Type() != "method_declaration" {
				continue
			}
			snap := e.extractMethod(child, source, pkg, className)
			if snap.MethodName != "" {
				methods[snap.Key()] = snap
			}
		}
		// Continue walking so nested classes are covered too.
		return true
	})

	return methods, nil
}

// extractMethod builds a snapshot from a method_declaration node.
func (e *JavaExtractor) extractMethod(node *sitter.Node, source []byte, pkg, className string) model.MethodSnapshot {
	snap := model.MethodSnapshot{
		PackageName: pkg,
		ClassName:   className,
		ReturnType:  "void",
	}

	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		snap.MethodName = nameNode.Content(source)
	}
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		snap.ReturnType = typeNode.Content(source)
	}
	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		snap.Body = bodyNode.Content(source)
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		snap.Parameters = extractParameters(params, source)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "modifiers":
			applyModifiers(&snap, child, source)
		case "throws":
			snap.Exceptions = extractThrows(child, source)
		}
	}

	return snap
}

// extractParameters walks a formal_parameters node.
func extractParameters(params *sitter.Node, source []byte) []model.Parameter {
	var out []model.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		if child.Type() != "formal_parameter" && child.Type() != "spread_parameter" {
			continue
		}
		p := model.Parameter{}
		if typeNode := child.ChildByFieldName("type"); typeNode != nil {
			p.Type = typeNode.Content(source)
			if child.Type() == "spread_parameter" {
				p.Type += "..."
			}
		}
		if nameNode := child.ChildByFieldName("name"); nameNode != nil {
			p.Name = nameNode.Content(source)
		}
		if p.Type != "" || p.Name != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyModifiers reads visibility and the static flag off a modifiers node.
func applyModifiers(snap *model.MethodSnapshot, modifiers *sitter.Node, source []byte) {
	for i := 0; i < int(modifiers.ChildCount()); i++ {
		switch modifiers.Child(i).Content(source) {
		case "public", "private", "protected":
			snap.Visibility = modifiers.Child(i).Content(source)
		case "static":
			snap.Static = true
		}
	}
}

// extractThrows collects declared exception types off a throws node.
func extractThrows(throws *sitter.Node, source []byte) []string {
	var out []string
	for i := 0; i < int(throws.NamedChildCount()); i++ {
		out = append(out, throws.NamedChild(i).Content(source))
	}
	return out
}

// extractPackageName reads the package declaration, if present.
func extractPackageName(root *sitter.Node, source []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "package_declaration" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			inner := child.NamedChild(j)
			if inner.Type() == "scoped_identifier" || inner.Type() == "identifier" {
				return inner.Content(source)
			}
		}
	}
	return ""
}

// ParseSource parses Java source into a tree-sitter tree.
//
// The caller must Close the returned tree. Parsing is error-tolerant;
// check RootNode().HasError() to detect broken syntax.
func ParseSource(ctx context.Context, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return tree, nil
}
