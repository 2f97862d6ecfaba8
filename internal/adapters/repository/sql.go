package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// dialect holds the statements a SQL backend needs.
type dialect struct {
	name        string
	schema      string
	load        string
	upsert      string
	// textPayload binds the payload as a string; lib/pq would send []byte as bytea.
	textPayload bool
}

// sqlStore keeps one row per document in a documents table and commits
// with a single UPSERT inside a transaction.
type sqlStore struct {
	db     *sql.DB
	d      dialect
	closed atomic.Bool
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*sqlStore, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &sqlStore{db: db, d: d}, nil
}

func (s *sqlStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.d.load, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s select %s: %w", s.d.name, key, err)
	}
	return payload, nil
}

func (s *sqlStore) Commit(ctx context.Context, key string, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin tx: %w", s.d.name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var payload any = data
	if s.d.textPayload {
		payload = string(data)
	}
	if _, err := tx.ExecContext(ctx, s.d.upsert, key, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("%s upsert %s: %w", s.d.name, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit %s: %w", s.d.name, key, err)
	}
	committed = true
	return nil
}

func (s *sqlStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *sqlStore) DB() *sql.DB { return s.db }
