// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history tracks per-test execution history, trends, and the
// healing-attempt ledger.
//
// The Store abstraction keeps the tracker independent of where history
// lives: the in-memory store serves tests and tooling, the BadgerDB
// store serves the server. Both share lazy-create-on-first-write
// semantics — a history record exists only once something was recorded
// for its test id.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/mendhq/mend/services/healing/model"
)

// Store is a key→history record store.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The tracker
// serializes read-modify-write cycles per call on top of this.
type Store interface {
	// Get returns the history for a test id. The boolean is false when
	// no history exists yet; that is not an error.
	Get(ctx context.Context, testID string) (*model.TestExecutionHistory, bool, error)

	// Put inserts or replaces the history record for its test id.
	Put(ctx context.Context, h *model.TestExecutionHistory) error

	// All returns every stored history record.
	All(ctx context.Context) ([]model.TestExecutionHistory, error)
}

// MemoryStore is an in-memory Store.
//
// Values are copied on the way in and out so callers never alias
// stored state.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]model.TestExecutionHistory
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]model.TestExecutionHistory)}
}

// Get returns the history for a test id.
func (s *MemoryStore) Get(ctx context.Context, testID string) (*model.TestExecutionHistory, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byID[testID]
	if !ok {
		return nil, false, nil
	}
	out := h
	return &out, true, nil
}

// Put inserts or replaces the history record for its test id.
func (s *MemoryStore) Put(ctx context.Context, h *model.TestExecutionHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.TestID == "" {
		return errors.New("history test id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[h.TestID] = *h
	return nil
}

// All returns every stored history record.
func (s *MemoryStore) All(ctx context.Context) ([]model.TestExecutionHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TestExecutionHistory, 0, len(s.byID))
	for _, h := range s.byID {
		out = append(out, h)
	}
	return out, nil
}

// historyKeyPrefix namespaces history records inside the shared database.
const historyKeyPrefix = "history/"

// BadgerStore is a BadgerDB-backed Store storing JSON records under
// "history/<test_id>".
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an opened BadgerDB instance.
// The caller owns the database lifecycle and must close it.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	if db == nil {
		return nil, errors.New("badger database is required")
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the history for a test id.
func (s *BadgerStore) Get(ctx context.Context, testID string) (*model.TestExecutionHistory, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var h model.TestExecutionHistory
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(historyKeyPrefix + testID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &h)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load history %s: %w", testID, err)
	}
	return &h, true, nil
}

// Put inserts or replaces the history record for its test id.
func (s *BadgerStore) Put(ctx context.Context, h *model.TestExecutionHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.TestID == "" {
		return errors.New("history test id is required")
	}

	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal history %s: %w", h.TestID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(historyKeyPrefix+h.TestID), data)
	})
	if err != nil {
		return fmt.Errorf("save history %s: %w", h.TestID, err)
	}
	return nil
}

// All returns every stored history record.
func (s *BadgerStore) All(ctx context.Context) ([]model.TestExecutionHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.TestExecutionHistory
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var h model.TestExecutionHistory
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &h)
			})
			if err != nil {
				return err
			}
			out = append(out, h)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan histories: %w", err)
	}
	return out, nil
}
