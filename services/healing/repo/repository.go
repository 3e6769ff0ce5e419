// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package repo provides test case persistence.
//
// TestRepository is the persistence collaborator of the healing engine.
// Two implementations ship with the service: MemoryRepository for tests
// and single-process tooling, and BadgerRepository for the server, part
// of the warm tier of the storage model (hot RAM state, warm BadgerDB).
package repo

import (
	"context"
	"errors"

	"github.com/mendhq/mend/services/healing/model"
)

// ErrNotFound indicates the requested test case does not exist.
var ErrNotFound = errors.New("test case not found")

// TestRepository stores and retrieves test cases.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the orchestrator
// calls Save from multiple heal pipelines at once.
type TestRepository interface {
	// FindByID returns the test with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.TestCase, error)

	// Save inserts or replaces a test case by id.
	Save(ctx context.Context, test *model.TestCase) error

	// FindByStatus returns all tests currently in the given status.
	FindByStatus(ctx context.Context, status model.TestStatus) ([]model.TestCase, error)

	// FindByClassName returns all tests whose target class matches.
	FindByClassName(ctx context.Context, className string) ([]model.TestCase, error)

	// FindByTarget returns all tests targeting the given class method.
	FindByTarget(ctx context.Context, className, methodName string) ([]model.TestCase, error)

	// List returns every stored test case.
	List(ctx context.Context) ([]model.TestCase, error)
}
