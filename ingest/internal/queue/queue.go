// Package queue provides the bounded FIFO backing the pipeline stages.
package queue

import (
	"sync"
)

// Ring is a concurrency-safe generic circular queue with a fixed capacity.
// Pushing onto a full ring evicts the oldest entry rather than rejecting the
// new one.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	size  int
	enter int // Points to the next position for entering
	leave int // Points to the next item that is leaving
}

// NewRing creates a new Ring with the given capacity. Capacities below one
// are raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		items: make([]T, capacity),
	}
}

// Len returns the number of items in the ring.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.size
}

// Cap returns the fixed capacity of the ring.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Push adds an item to the end of the ring, evicting the oldest item first
// when the ring is full. It reports whether an eviction occurred.
func (r *Ring[T]) Push(value T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := false
	if r.size == len(r.items) {
		r.leave = r.move(r.leave)
		r.size--
		evicted = true
	}

	r.items[r.enter] = value
	r.enter = r.move(r.enter)
	r.size++
	return evicted
}

// Pop removes and returns the item at the front of the ring.
func (r *Ring[T]) Pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.leave]
	r.items[r.leave] = zero
	r.leave = r.move(r.leave)
	r.size--
	return item, true
}

// PopN removes and returns up to n items from the front of the ring.
func (r *Ring[T]) PopN(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}

	var zero T
	out := make([]T, n)
	for i := range out {
		out[i] = r.items[r.leave]
		r.items[r.leave] = zero
		r.leave = r.move(r.leave)
	}
	r.size -= n
	return out
}

// Items returns a copy of the ring contents in FIFO order.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.size)
	at := r.leave
	for i := range out {
		out[i] = r.items[at]
		at = r.move(at)
	}
	return out
}

// Clear removes all elements from the ring.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.enter = 0
	r.leave = 0
	r.size = 0
}

// move increments the index circularly.
func (r *Ring[T]) move(index int) int {
	return (index + 1) % len(r.items)
}
