package repository

import (
	"context"
	"time"

	"github.com/okian/scorekeep/pkg/metrics"
)

// instrumented records latency, size and failure metrics for a backend.
type instrumented struct {
	backend string
	next    Store
}

// Instrument wraps s so every call is reported under the backend label.
func Instrument(backend string, s Store) Store {
	return &instrumented{backend: backend, next: s}
}

func (s *instrumented) Load(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.next.Load(ctx, key)
	if err != nil {
		metrics.RecordDocumentFailure(s.backend, "load")
		return nil, err
	}
	metrics.RecordDocumentLoad(s.backend, time.Since(start).Seconds())
	return data, nil
}

func (s *instrumented) Commit(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	if err := s.next.Commit(ctx, key, data); err != nil {
		metrics.RecordDocumentFailure(s.backend, "commit")
		return err
	}
	metrics.RecordDocumentCommit(s.backend, time.Since(start).Seconds(), len(data))
	return nil
}

func (s *instrumented) Close() error {
	return s.next.Close()
}
