// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "strings"

// Parameter is a single method parameter (type plus declared name).
type Parameter struct {
	// Type is the declared parameter type, e.g. "int" or "List<String>".
	Type string `json:"type"`

	// Name is the declared parameter name.
	Name string `json:"name"`
}

// MethodSnapshot is an immutable structural descriptor of a production
// method at a point in time.
//
// # Description
//
// A new snapshot is produced every time source is analyzed; snapshots are
// never mutated in place. Structural equality (return type plus parameter
// type sequence) is the only equivalence the engine reasons about — body
// changes that keep the signature intact are invisible by design.
type MethodSnapshot struct {
	// PackageName is the declaring package.
	PackageName string `json:"package_name"`

	// ClassName is the declaring class.
	ClassName string `json:"class_name"`

	// MethodName is the method name.
	MethodName string `json:"method_name"`

	// ReturnType is the declared return type ("void" when absent).
	ReturnType string `json:"return_type"`

	// Parameters is the ordered parameter list.
	Parameters []Parameter `json:"parameters"`

	// Exceptions lists the declared thrown exception types, in order.
	Exceptions []string `json:"exceptions,omitempty"`

	// Body is the raw body text, kept for prompt assembly only.
	Body string `json:"body,omitempty"`

	// Visibility is the declared visibility modifier ("public",
	// "private", "protected", or "" for package-private).
	Visibility string `json:"visibility"`

	// Static reports whether the method is declared static.
	Static bool `json:"static"`
}

// Key returns the identity of the method within its class.
//
// Methods are keyed by name: a parameter-list change must be recognized
// as a change to the same method, not a remove-plus-add. Overloads
// collapse onto one key; the last declaration analyzed wins.
func (m MethodSnapshot) Key() string {
	return m.MethodName
}

// QualifiedName returns "Class.method" for logging and prompt text.
func (m MethodSnapshot) QualifiedName() string {
	if m.ClassName == "" {
		return m.MethodName
	}
	return m.ClassName + "." + m.MethodName
}

// Signature renders the full declared signature as source text,
// e.g. "public static int divide(int a, int b) throws ArithmeticException".
func (m MethodSnapshot) Signature() string {
	var b strings.Builder
	if m.Visibility != "" {
		b.WriteString(m.Visibility)
		b.WriteString(" ")
	}
	if m.Static {
		b.WriteString("static ")
	}
	ret := m.ReturnType
	if ret == "" {
		ret = "void"
	}
	b.WriteString(ret)
	b.WriteString(" ")
	b.WriteString(m.MethodName)
	b.WriteString("(")
	for i, p := range m.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Type)
		if p.Name != "" {
			b.WriteString(" ")
			b.WriteString(p.Name)
		}
	}
	b.WriteString(")")
	if len(m.Exceptions) > 0 {
		b.WriteString(" throws ")
		b.WriteString(strings.Join(m.Exceptions, ", "))
	}
	return b.String()
}

// StructurallyEqual reports whether two snapshots agree on return type
// and parameter type sequence (arity and order).
//
// Body text, parameter names, thrown exceptions and modifiers are
// deliberately ignored: a body-only change does not break callers, and
// the engine claims only structural — never behavioral — equivalence.
func (m MethodSnapshot) StructurallyEqual(other MethodSnapshot) bool {
	if m.ReturnType != other.ReturnType {
		return false
	}
	if len(m.Parameters) != len(other.Parameters) {
		return false
	}
	for i := range m.Parameters {
		if m.Parameters[i].Type != other.Parameters[i].Type {
			return false
		}
	}
	return true
}
