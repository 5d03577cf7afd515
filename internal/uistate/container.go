// Package uistate holds UI state that several components read and write:
// an owned container with change subscriptions and the per-entity override
// history with bounded undo/redo.
package uistate

import (
	"maps"
	"slices"
	"sync"
)

// Container owns a value of type T. Readers call Get or Subscribe; writers
// go through Set or Update. Subscribers run synchronously after each change,
// in subscription order.
type Container[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]func(T)
	next  int
}

// NewContainer creates a container holding initial.
func NewContainer[T any](initial T) *Container[T] {
	return &Container[T]{value: initial, subs: map[int]func(T){}}
}

// Get returns the current value.
func (c *Container[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value and notifies subscribers.
func (c *Container[T]) Set(v T) {
	c.Update(func(T) T { return v })
}

// Update applies fn to the current value and notifies subscribers with the
// result.
func (c *Container[T]) Update(fn func(T) T) {
	c.mu.Lock()
	c.value = fn(c.value)
	v := c.value
	subs := c.subscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Subscribe registers fn for future changes and returns a function that
// removes it.
func (c *Container[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Container[T]) subscribers() []func(T) {
	ids := slices.Sorted(maps.Keys(c.subs))
	out := make([]func(T), len(ids))
	for i, id := range ids {
		out[i] = c.subs[id]
	}
	return out
}
