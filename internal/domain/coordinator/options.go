package coordinator

import "github.com/okian/scorekeep/pkg/logger"

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for corruption and commit failures.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCorruptionHook registers a callback for malformed documents.
func WithCorruptionHook(h CorruptionHook) Option {
	return func(c *Coordinator) {
		c.onCorrupt = h
	}
}
