// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

// Ring is a fixed-size circular buffer.
//
// # Description
//
// O(1) push with bounded memory; once full, each push overwrites the
// oldest item. The tracker uses it as the rolling execution window.
//
// # Thread Safety
//
// NOT safe for concurrent use; the tracker serializes access.
type Ring[T any] struct {
	data  []T
	head  int // next write position
	count int
}

// NewRing creates a ring with the given capacity (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// RingFromNewest rebuilds a ring from a newest-first slice, e.g. the
// persisted window of a TestExecutionHistory. Items beyond the capacity
// are dropped from the old end.
func RingFromNewest[T any](capacity int, newestFirst []T) *Ring[T] {
	r := NewRing[T](capacity)
	n := len(newestFirst)
	if n > r.Cap() {
		n = r.Cap()
	}
	// Push oldest to newest so the ring ordering is consistent.
	for i := n - 1; i >= 0; i-- {
		r.Push(newestFirst[i])
	}
	return r
}

// Push adds an item, overwriting the oldest when full.
func (r *Ring[T]) Push(item T) {
	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// NewestFirst returns the items newest to oldest as a fresh slice.
func (r *Ring[T]) NewestFirst() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		idx := r.head - 1 - i
		if idx < 0 {
			idx += len(r.data)
		}
		out = append(out, r.data[idx])
	}
	return out
}

// OldestFirst returns the items oldest to newest as a fresh slice.
func (r *Ring[T]) OldestFirst() []T {
	newest := r.NewestFirst()
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the maximum capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }
