// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package codeparse

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mendhq/mend/services/healing/model"
)

// ErrUnknownMethod is returned when a class/method pair is not indexed.
var ErrUnknownMethod = errors.New("method not found in snapshot index")

// SnapshotIndex caches the latest extracted method snapshots per class.
//
// # Description
//
// The index is the engine's view of "current production code": impact
// analysis writes each class's freshly extracted method map into it,
// and diagnosis resolves a test's target method out of it. A class that
// was never analyzed simply has no entry.
//
// # Thread Safety
//
// Safe for concurrent use.
type SnapshotIndex struct {
	mu      sync.RWMutex
	byClass map[string]map[string]model.MethodSnapshot
}

// NewSnapshotIndex creates an empty index.
func NewSnapshotIndex() *SnapshotIndex {
	return &SnapshotIndex{byClass: make(map[string]map[string]model.MethodSnapshot)}
}

// Update replaces the method map stored for a class.
//
// The previous map is discarded entirely: methods absent from the new
// map are treated as removed from the class.
func (idx *SnapshotIndex) Update(className string, methods map[string]model.MethodSnapshot) {
	if className == "" {
		return
	}

	copied := make(map[string]model.MethodSnapshot, len(methods))
	for k, v := range methods {
		copied[k] = v
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byClass[className] = copied
}

// Methods returns a copy of the method map for a class.
// The boolean is false when the class was never indexed.
func (idx *SnapshotIndex) Methods(className string) (map[string]model.MethodSnapshot, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	methods, ok := idx.byClass[className]
	if !ok {
		return nil, false
	}
	out := make(map[string]model.MethodSnapshot, len(methods))
	for k, v := range methods {
		out[k] = v
	}
	return out, true
}

// Resolve looks up the current snapshot of a single method.
//
// Returns ErrUnknownMethod (wrapped with the class/method pair) when
// the class was never indexed or the method is gone from it.
func (idx *SnapshotIndex) Resolve(className, methodName string) (model.MethodSnapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	methods, ok := idx.byClass[className]
	if !ok {
		return model.MethodSnapshot{}, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, className, methodName)
	}
	snap, ok := methods[methodName]
	if !ok {
		return model.MethodSnapshot{}, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, className, methodName)
	}
	return snap, nil
}

// FindBySignature scans the index for a method whose rendered
// signature matches exactly.
//
// Returns ErrUnknownMethod when no indexed method renders to the
// given signature.
func (idx *SnapshotIndex) FindBySignature(signature string) (model.MethodSnapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for _, methods := range idx.byClass {
		for _, snap := range methods {
			if snap.Signature() == signature {
				return snap, nil
			}
		}
	}
	return model.MethodSnapshot{}, fmt.Errorf("%w: signature %q", ErrUnknownMethod, signature)
}

// Classes returns the names of all indexed classes.
func (idx *SnapshotIndex) Classes() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(idx.byClass))
	for name := range idx.byClass {
		out = append(out, name)
	}
	return out
}
