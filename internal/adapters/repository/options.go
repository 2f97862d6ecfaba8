package repository

import (
	"net/http"
	"os"
)

type options struct {
	fileMode   os.FileMode
	dirMode    os.FileMode
	httpClient *http.Client
	noSync     bool
	pgDriver   string
}

func defaultOptions() options {
	return options{fileMode: 0o640, dirMode: 0o750, pgDriver: PgxDriver}
}

// Option applies a configuration option to a backend.
type Option func(*options)

// WithFileMode sets the permission bits of committed files (file backend).
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.fileMode = mode
		}
	}
}

// WithDirMode sets the permission bits of created directories (file backend).
func WithDirMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.dirMode = mode
		}
	}
}

// WithoutSync skips fsync on commit (file backend). Only for tests and
// throwaway data: a crash may then lose the last commit, though never tear it.
func WithoutSync() Option {
	return func(o *options) { o.noSync = true }
}

// WithHTTPClient overrides the HTTP client used by the S3 backend.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithPostgresDriver selects the database/sql driver of the postgres
// backend: "pgx" (default) or "pq".
func WithPostgresDriver(name string) Option {
	return func(o *options) {
		switch name {
		case PgxDriver:
			o.pgDriver = PgxDriver
		case "pq", PQDriver:
			o.pgDriver = PQDriver
		}
	}
}
