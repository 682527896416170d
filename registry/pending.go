package registry

import (
	"context"
	"sync"

	"github.com/tellurio-ai/tellurio-go/errkit"
)

// PendingGradFn associates a not-yet-registered node id with the Variables
// waiting to be linked to it (spec.md §4.2, invariant I5). When the Node
// with that id registers, every waiting Variable is drained and the key is
// removed atomically.
type PendingGradFn[T any] struct {
	mu       sync.Mutex
	waiting  map[string][]T
	resolved map[string]chan struct{}
}

// NewPendingGradFn constructs an empty PendingGradFn map.
func NewPendingGradFn[T any]() *PendingGradFn[T] {
	return &PendingGradFn[T]{
		waiting:  make(map[string][]T),
		resolved: make(map[string]chan struct{}),
	}
}

// Enqueue registers item as waiting on nodeID and returns a channel that is
// closed once Drain(nodeID) runs.
func (p *PendingGradFn[T]) Enqueue(nodeID string, item T) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.waiting[nodeID] = append(p.waiting[nodeID], item)
	ch, ok := p.resolved[nodeID]
	if !ok {
		ch = make(chan struct{})
		p.resolved[nodeID] = ch
	}
	return ch
}

// Drain removes and returns every Variable waiting on nodeID, closing its
// resolution channel so concurrent Wait calls unblock. Called when the
// corresponding Node registers.
func (p *PendingGradFn[T]) Drain(nodeID string) []T {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := p.waiting[nodeID]
	delete(p.waiting, nodeID)
	if ch, ok := p.resolved[nodeID]; ok {
		close(ch)
		delete(p.resolved, nodeID)
	}
	return items
}

// Has reports whether nodeID currently has at least one waiting Variable
// (invariant I5: a key present in the map has at least one waiter).
func (p *PendingGradFn[T]) Has(nodeID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting[nodeID]) > 0
}

// Wait blocks until nodeID is drained or ctx is done, returning
// errkit.TimeoutError on the latter. Used by a Variable read of grad_fn
// while it is still enqueued (spec.md §4.2's bounded-timeout read).
func (p *PendingGradFn[T]) Wait(ctx context.Context, nodeID string) error {
	p.mu.Lock()
	ch, ok := p.resolved[nodeID]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errkit.NewTimeoutError("grad_fn resolution for node "+nodeID, ctx.Err())
	}
}
