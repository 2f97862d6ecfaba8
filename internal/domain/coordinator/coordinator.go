// Package coordinator serializes read-modify-write cycles per document key.
//
// Mutations of the same key run one at a time; mutations of different keys
// share no lock. Reads never take a lock: they observe the last committed
// document, which the repository guarantees is never torn.
package coordinator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/okian/scorekeep/internal/adapters/repository"
	"github.com/okian/scorekeep/internal/domain/errs"
	"github.com/okian/scorekeep/pkg/logger"
	"github.com/okian/scorekeep/pkg/metrics"
)

// Mutation results reported to metrics.
const (
	resultCommitted = "committed"
	resultUnchanged = "unchanged"
	resultAborted   = "aborted"
	resultFailed    = "failed"
)

// CorruptionHook observes a malformed document that was replaced by an
// empty one on load.
type CorruptionHook func(key string, err error)

// Coordinator owns the per-key lock table in front of a repository.Store.
type Coordinator struct {
	store     repository.Store
	log       logger.Logger
	onCorrupt CorruptionHook

	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is a one-slot semaphore shared by every holder or waiter of a key.
// refs counts them; the entry is dropped when it reaches zero.
type keyLock struct {
	sem  chan struct{}
	refs int
}

// New creates a coordinator over store.
func New(store repository.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: store,
		log:   logger.Nop(),
		locks: make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActiveKeys returns how many keys are currently held or awaited.
func (c *Coordinator) ActiveKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

func (c *Coordinator) ref(key string) *keyLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		c.locks[key] = l
	}
	l.refs++
	metrics.UpdateLockedKeys(len(c.locks))
	return l
}

func (c *Coordinator) unref(key string, l *keyLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, key)
	}
	metrics.UpdateLockedKeys(len(c.locks))
}

// acquire blocks until key is exclusively held or ctx is done.
func (c *Coordinator) acquire(ctx context.Context, key string) (func(), error) {
	l := c.ref(key)
	start := time.Now()
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		c.unref(key, l)
		return nil, ctx.Err()
	}
	metrics.RecordLockWait(time.Since(start).Seconds())
	release := func() {
		<-l.sem
		c.unref(key, l)
	}
	// Both channels may have been ready; a caller that gave up never starts.
	if err := ctx.Err(); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// Update runs one read-modify-write cycle on key under exclusive access.
//
// mutate receives the freshly loaded document (the zero value when absent
// or malformed) and reports whether it changed it. The document is committed
// only when mutate returns changed and no error, and ctx is still live at
// that point. Once the commit starts it is not cancelled, so a caller never
// sees an ambiguous outcome. Update returns the document as it stands after
// the call, and whether a commit happened.
func Update[T any](ctx context.Context, c *Coordinator, key string, mutate func(doc *T) (bool, error)) (T, bool, error) {
	const op = "coordinator.update"
	var zero T

	release, err := c.acquire(ctx, key)
	if err != nil {
		metrics.RecordMutation(resultAborted)
		return zero, false, errs.WrapKind(op, errs.ErrCancelled, err)
	}
	defer release()

	doc, err := load[T](ctx, c, key)
	if err != nil {
		if ctx.Err() != nil {
			metrics.RecordMutation(resultAborted)
			return zero, false, errs.WrapKind(op, errs.ErrCancelled, ctx.Err())
		}
		metrics.RecordMutation(resultFailed)
		return zero, false, errs.WrapKind(op, errs.ErrStorage, err)
	}

	changed, err := mutate(&doc)
	if err != nil {
		metrics.RecordMutation(resultAborted)
		return zero, false, err
	}
	if !changed {
		metrics.RecordMutation(resultUnchanged)
		return doc, false, nil
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordMutation(resultAborted)
		return zero, false, errs.WrapKind(op, errs.ErrCancelled, err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		metrics.RecordMutation(resultFailed)
		return zero, false, errs.WrapKind(op, errs.ErrStorage, err)
	}
	if err := c.store.Commit(context.WithoutCancel(ctx), key, data); err != nil {
		metrics.RecordMutation(resultFailed)
		c.log.Error(ctx, "commit failed", logger.String("key", key), logger.Error(err))
		return zero, false, errs.WrapKind(op, errs.ErrStorage, err)
	}
	metrics.RecordMutation(resultCommitted)
	return doc, true, nil
}

// Read returns the last committed document for key without locking.
func Read[T any](ctx context.Context, c *Coordinator, key string) (T, error) {
	doc, err := load[T](ctx, c, key)
	if err != nil {
		var zero T
		if ctx.Err() != nil {
			return zero, errs.WrapKind("coordinator.read", errs.ErrCancelled, ctx.Err())
		}
		return zero, errs.WrapKind("coordinator.read", errs.ErrStorage, err)
	}
	return doc, nil
}

func load[T any](ctx context.Context, c *Coordinator, key string) (T, error) {
	var doc T
	data, err := c.store.Load(ctx, key)
	if err != nil || len(data) == 0 {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		var empty T
		c.log.Warn(ctx, "malformed document replaced by empty document",
			logger.String("key", key), logger.Int("bytes", len(data)), logger.Error(err))
		metrics.RecordDocumentCorrupt(namespace(key))
		if c.onCorrupt != nil {
			c.onCorrupt(key, err)
		}
		return empty, nil
	}
	return doc, nil
}

// namespace is the first segment of key.
func namespace(key string) string {
	ns, _, _ := strings.Cut(key, "/")
	return ns
}
