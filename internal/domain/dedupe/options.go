package dedupe

// Option applies a configuration option to the window.
type Option func(*window)

// WithMaxSize sets how many ids are remembered.
// If maxSize > 0: bounded, the oldest id is evicted first.
// If maxSize <= 0: unbounded.
func WithMaxSize(maxSize int) Option {
	return func(w *window) {
		w.maxSize = maxSize
	}
}
