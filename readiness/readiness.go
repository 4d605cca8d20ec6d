// Package readiness tracks which nodes of a network have started and are ready to receive messages.
package readiness

import (
	"context"
	"sync"

	"github.com/relab/benor"
)

// Tracker records ready nodes and lets goroutines wait until the whole network is ready.
// The zero value is not usable; use New.
type Tracker struct {
	n int

	mut   sync.Mutex
	ready map[benor.ID]struct{}
	c     chan struct{} // closed when every node is ready
}

// New returns a tracker for a network of n nodes.
func New(n int) *Tracker {
	t := &Tracker{
		n:     n,
		ready: make(map[benor.ID]struct{}),
		c:     make(chan struct{}),
	}
	if n <= 0 {
		close(t.c)
	}
	return t
}

// MarkReady records that the node with the given ID is ready.
// Marking the last node wakes every waiting goroutine.
func (t *Tracker) MarkReady(id benor.ID) {
	t.mut.Lock()
	defer t.mut.Unlock()
	if _, ok := t.ready[id]; ok {
		return
	}
	t.ready[id] = struct{}{}
	if len(t.ready) == t.n {
		close(t.c)
	}
}

// AllReady returns true if every node is ready.
func (t *Tracker) AllReady() bool {
	select {
	case <-t.c:
		return true
	default:
		return false
	}
}

// Ready returns the number of ready nodes.
func (t *Tracker) Ready() int {
	t.mut.Lock()
	defer t.mut.Unlock()
	return len(t.ready)
}

// Wait blocks until every node is ready or the context is done.
func (t *Tracker) Wait(ctx context.Context) error {
	select {
	case <-t.c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
