// Package registry implements the process-wide keyed maps that back the
// client synchronization runtime's mirrored entities: independent Variable,
// Node, Model, Optimizer and Callable registries, plus the pending-grad-fn
// bookkeeping for out-of-order delivery (spec.md §4.2).
//
// The registry type itself is domain-agnostic (generic over the stored
// value) so this package has no dependency on the autodiff package; autodiff
// instantiates Registry[*Variable], Registry[*Node], and so on. This mirrors
// the teacher's separation of the connection/dispatch machinery from the
// domain types it carries.
package registry

import (
	"sync"

	"github.com/tellurio-ai/tellurio-go/errkit"
)

// Registry is a process-wide map from opaque server-assigned id to a local
// object, guarded by a single RWMutex per spec.md §5 (a single mutex per
// registry, since this runtime's mutation is not all serialized onto a
// single executor the way the original Python asyncio client's is).
type Registry[T any] struct {
	name string

	mu      sync.RWMutex
	entries map[string]T
}

// New constructs an empty Registry. name is used only to produce descriptive
// errkit.LookupError values.
func New[T any](name string) *Registry[T] {
	return &Registry[T]{name: name, entries: make(map[string]T)}
}

// Register records value under id. Registering the same id twice overwrites
// the previous entry, matching the Python registries' plain dict semantics.
func (r *Registry[T]) Register(id string, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = value
}

// Get returns the entry for id, or the zero value and false if absent.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[id]
	return v, ok
}

// MustGet returns the entry for id or an errkit.LookupError.
func (r *Registry[T]) MustGet(id string) (T, error) {
	v, ok := r.Get(id)
	if !ok {
		var zero T
		return zero, errkit.NewLookupError(r.name, id)
	}
	return v, nil
}

// Delete removes id from the registry. Per spec.md I3, this is only called
// by explicit teardown, never implicitly.
func (r *Registry[T]) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len reports the number of registered entries, mainly for tests.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
