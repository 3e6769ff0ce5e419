// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/mendhq/mend/services/healing/model"
)

// testKeyPrefix namespaces test case records inside the shared database.
const testKeyPrefix = "test/"

// BadgerRepository is a BadgerDB-backed TestRepository.
//
// # Description
//
// Records are stored as JSON under "test/<id>". Secondary lookups
// (status, class, target) iterate the prefix; at the scale of a test
// suite per service this is cheaper than maintaining index keys.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type BadgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository wraps an opened BadgerDB instance.
// The caller owns the database lifecycle and must close it.
func NewBadgerRepository(db *badger.DB) (*BadgerRepository, error) {
	if db == nil {
		return nil, errors.New("badger database is required")
	}
	return &BadgerRepository{db: db}, nil
}

// FindByID returns the test with the given id, or ErrNotFound.
func (r *BadgerRepository) FindByID(ctx context.Context, id string) (*model.TestCase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var test model.TestCase
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(testKeyPrefix + id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &test)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load test %s: %w", id, err)
	}
	return &test, nil
}

// Save inserts or replaces a test case by id.
func (r *BadgerRepository) Save(ctx context.Context, test *model.TestCase) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if test.ID == "" {
		return errors.New("test id is required")
	}

	data, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("marshal test %s: %w", test.ID, err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(testKeyPrefix+test.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save test %s: %w", test.ID, err)
	}
	return nil
}

// FindByStatus returns all tests currently in the given status.
func (r *BadgerRepository) FindByStatus(ctx context.Context, status model.TestStatus) ([]model.TestCase, error) {
	return r.scan(ctx, func(t model.TestCase) bool {
		return t.Status == status
	})
}

// FindByClassName returns all tests whose target class matches.
func (r *BadgerRepository) FindByClassName(ctx context.Context, className string) ([]model.TestCase, error) {
	return r.scan(ctx, func(t model.TestCase) bool {
		return t.TargetClass == className
	})
}

// FindByTarget returns all tests targeting the given class method.
func (r *BadgerRepository) FindByTarget(ctx context.Context, className, methodName string) ([]model.TestCase, error) {
	return r.scan(ctx, func(t model.TestCase) bool {
		return t.TargetClass == className && t.TargetMethod == methodName
	})
}

// List returns every stored test case.
func (r *BadgerRepository) List(ctx context.Context) ([]model.TestCase, error) {
	return r.scan(ctx, func(model.TestCase) bool { return true })
}

func (r *BadgerRepository) scan(ctx context.Context, keep func(model.TestCase) bool) ([]model.TestCase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.TestCase
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(testKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var test model.TestCase
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &test)
			})
			if err != nil {
				return err
			}
			if keep(test) {
				out = append(out, test)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan tests: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
