// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// RWGuard pairs a value with an RWMutex behind scoped helpers, so callers
// never hold a lock across unrelated code. The pipeline keeps its last
// published snapshot in one; status reads never race the worker's updates.
//
// The guard protects the value itself, not what the value points at. A T
// carrying slices or maps must be treated as copy-on-write inside Update:
// readers that took a Get hold the old backing arrays.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Read runs fn under the read lock and returns its result.
func (g *RWGuard[T]) Read(fn func(T) any) any {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.value)
}

// Write runs fn under the write lock; fn mutates through the pointer.
func (g *RWGuard[T]) Write(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}

// Update runs fn under the write lock and returns its result, typically a
// copy of the value after mutation.
func (g *RWGuard[T]) Update(fn func(*T) any) any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(&g.value)
}

// Get returns a copy of the value. Reference fields inside T still alias
// the guarded state; see the copy-on-write note above.
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Swap replaces the value and returns the old one.
func (g *RWGuard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	return old
}
