// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queue provides the generic deque used for RWCache's four file
// pipelines (uncached/staged/active/evicted, spec §3). It is not
// synchronized; callers that share a Deque across goroutines (RWCache
// does, across its foreground and background-fetch goroutine) must hold
// their own mutex around mutating calls, same as the rest of this
// engine's "one mutex over the shared state" policy (spec §5).
package queue

// Deque is an ordered, mutable sequence of T with head/tail operations.
// Unlike a single-item Queue, RWCache needs to snapshot and commit
// batches without disturbing the deque in between (PrepareNextCacheBlock
// snapshots up to BLOCK descriptors before any copy starts, and only
// commits the pop once the copy succeeds), so Deque exposes batch
// variants of peek/pop alongside the single-item ones.
type Deque[T any] struct {
	items []T
}

// New returns an empty deque.
func New[T any]() *Deque[T] {
	return &Deque[T]{}
}

// Of returns a deque initialized with the given items, in order.
func Of[T any](items []T) *Deque[T] {
	d := &Deque[T]{items: make([]T, len(items))}
	copy(d.items, items)
	return d
}

// Len returns the number of items in the deque.
func (d *Deque[T]) Len() int {
	return len(d.items)
}

// IsEmpty reports whether the deque has no items.
func (d *Deque[T]) IsEmpty() bool {
	return len(d.items) == 0
}

// PushBack appends value to the tail.
func (d *Deque[T]) PushBack(value T) {
	d.items = append(d.items, value)
}

// PushAllBack appends values to the tail, in order.
func (d *Deque[T]) PushAllBack(values []T) {
	d.items = append(d.items, values...)
}

// PopFront removes and returns the head item.
// Panics if the deque is empty.
func (d *Deque[T]) PopFront() T {
	if len(d.items) == 0 {
		panic("queue: PopFront called on an empty deque")
	}
	v := d.items[0]
	d.items = d.items[1:]
	return v
}

// PeekFrontN returns a copy of up to n items from the head, without
// removing them. If n exceeds the deque's length, the whole deque is
// returned. Used to snapshot a prefetch block before committing to it.
func (d *Deque[T]) PeekFrontN(n int) []T {
	if n > len(d.items) {
		n = len(d.items)
	}
	out := make([]T, n)
	copy(out, d.items[:n])
	return out
}

// PopFrontN removes and returns up to n items from the head. If n
// exceeds the deque's length, the whole deque is drained.
func (d *Deque[T]) PopFrontN(n int) []T {
	if n > len(d.items) {
		n = len(d.items)
	}
	out := make([]T, n)
	copy(out, d.items[:n])
	d.items = d.items[n:]
	return out
}

// Drain removes and returns every item, in order, leaving the deque empty.
func (d *Deque[T]) Drain() []T {
	return d.PopFrontN(len(d.items))
}

// Snapshot returns a copy of every item currently in the deque, without
// removing them.
func (d *Deque[T]) Snapshot() []T {
	return d.PeekFrontN(len(d.items))
}
