// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/mendhq/mend/services/healing/model"
)

// MemoryRepository is an in-memory TestRepository.
//
// # Description
//
// Backed by a plain map guarded by a RWMutex. Values are copied on the
// way in and out so callers can never alias stored state. Listing
// methods return results sorted by id for deterministic output.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryRepository struct {
	mu    sync.RWMutex
	tests map[string]model.TestCase
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tests: make(map[string]model.TestCase)}
}

// FindByID returns the test with the given id, or ErrNotFound.
func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*model.TestCase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	test, ok := r.tests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := test
	return &out, nil
}

// Save inserts or replaces a test case by id.
func (r *MemoryRepository) Save(ctx context.Context, test *model.TestCase) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[test.ID] = *test
	return nil
}

// FindByStatus returns all tests currently in the given status.
func (r *MemoryRepository) FindByStatus(ctx context.Context, status model.TestStatus) ([]model.TestCase, error) {
	return r.filter(ctx, func(t model.TestCase) bool {
		return t.Status == status
	})
}

// FindByClassName returns all tests whose target class matches.
func (r *MemoryRepository) FindByClassName(ctx context.Context, className string) ([]model.TestCase, error) {
	return r.filter(ctx, func(t model.TestCase) bool {
		return t.TargetClass == className
	})
}

// FindByTarget returns all tests targeting the given class method.
func (r *MemoryRepository) FindByTarget(ctx context.Context, className, methodName string) ([]model.TestCase, error) {
	return r.filter(ctx, func(t model.TestCase) bool {
		return t.TargetClass == className && t.TargetMethod == methodName
	})
}

// List returns every stored test case.
func (r *MemoryRepository) List(ctx context.Context) ([]model.TestCase, error) {
	return r.filter(ctx, func(model.TestCase) bool { return true })
}

func (r *MemoryRepository) filter(ctx context.Context, keep func(model.TestCase) bool) ([]model.TestCase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.TestCase
	for _, test := range r.tests {
		if keep(test) {
			out = append(out, test)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
