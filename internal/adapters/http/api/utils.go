package api

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/okian/scorekeep/internal/domain/dedupe"
)

func wrapBadRequest(err error) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}

func badRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// IdempotencyGuard applies a mutation at most once per Idempotency-Key.
// A key is reported as a duplicate only after a first attempt finished
// below 400; while that attempt runs, replays are refused with 409.
type IdempotencyGuard struct {
	d dedupe.Deduper

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewIdempotencyGuard creates a guard remembering completed keys in d.
func NewIdempotencyGuard(d dedupe.Deduper) *IdempotencyGuard {
	return &IdempotencyGuard{d: d, inflight: make(map[string]struct{})}
}

// Wrap guards next. Requests without the header pass straight through.
func (g *IdempotencyGuard) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if key == "" {
			next(w, r)
			return
		}
		id := r.Method + " " + r.URL.Path + " " + key

		g.mu.Lock()
		if _, busy := g.inflight[id]; busy {
			g.mu.Unlock()
			writeError(w, fmt.Errorf("%w: %s", ErrInFlight, key))
			return
		}
		if g.d.SeenAndRecord(r.Context(), id) {
			g.mu.Unlock()
			writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
			return
		}
		g.inflight[id] = struct{}{}
		g.mu.Unlock()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		finished := false
		defer func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			// A failed or panicking attempt releases the key for a retry.
			if rw.statusCode >= http.StatusBadRequest || !finished {
				g.d.Unrecord(r.Context(), id)
			}
			delete(g.inflight, id)
		}()
		next(rw, r)
		finished = true
	}
}
