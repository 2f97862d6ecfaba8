package leaderboard

import (
	"time"

	"github.com/okian/scorekeep/pkg/logger"
)

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithRetention sets how many entries a category keeps.
func WithRetention(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.retention = n
		}
	}
}

// WithDisplayLimit sets the size of the display view.
func WithDisplayLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.displayLimit = n
		}
	}
}

// WithClock overrides the time source used for recordedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the ledger logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.log = lg
		}
	}
}
