package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/lib/pq"              // register lib/pq as "postgres"
)

// database/sql driver names accepted by WithPostgresDriver.
const (
	PgxDriver = "pgx"
	PQDriver  = "postgres"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var postgresDialect = dialect{
	name: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS documents (
		doc_key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	load:        `SELECT payload FROM documents WHERE doc_key = $1`,
	upsert:      `INSERT INTO documents(doc_key, payload, updated_at) VALUES($1, $2, $3) ON CONFLICT(doc_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
	textPayload: true,
}

// PostgresStore persists documents as JSONB rows. Payloads must be valid
// JSON; Load returns the server's normalized rendering of the document.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore connects to dsn and ensures the documents table exists.
// The pgx driver is used unless WithPostgresDriver selects lib/pq.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	openMu.Lock()
	db, err := sqlOpen(o.pgDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres (%s): %w", o.pgDriver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := newSQLStore(ctx, db, postgresDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{sqlStore: s}, nil
}

// OverrideSQLOpen swaps the sql.Open function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
