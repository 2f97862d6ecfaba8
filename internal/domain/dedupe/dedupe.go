// Package dedupe remembers recently seen request ids so retried mutations
// are applied at most once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 10_000

// Deduper records seen request ids.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if not.
	// Returns true if id was already seen. The empty id is never recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a failed mutation can be retried under the same id.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// window is a Deduper keeping the most recent maxSize ids in a ring.
// The oldest id is evicted when the ring is full. maxSize <= 0 disables
// eviction.
type window struct {
	mu      sync.Mutex
	seen    map[string]int // id -> ring slot, -1 when unbounded
	ring    []string
	next    int
	maxSize int
	size    atomic.Int64
}

// NewWindow creates an in-memory request-id window.
func NewWindow(opts ...Option) Deduper {
	w := &window{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(w)
	}
	w.seen = make(map[string]int)
	if w.maxSize > 0 {
		w.ring = make([]string, w.maxSize)
	}
	return w
}

func (w *window) SeenAndRecord(_ context.Context, id string) bool {
	if id == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return true
	}
	if w.maxSize <= 0 {
		w.seen[id] = -1
		w.size.Add(1)
		return false
	}

	if old := w.ring[w.next]; old != "" {
		delete(w.seen, old)
		w.size.Add(-1)
	}
	w.ring[w.next] = id
	w.seen[id] = w.next
	w.next = (w.next + 1) % w.maxSize
	w.size.Add(1)
	return false
}

func (w *window) Unrecord(_ context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	slot, ok := w.seen[id]
	if !ok {
		return
	}
	delete(w.seen, id)
	if slot >= 0 {
		w.ring[slot] = ""
	}
	w.size.Add(-1)
}

func (w *window) Size() int64 {
	return w.size.Load()
}
