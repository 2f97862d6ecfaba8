package scoring

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// Default reviewer configuration constants.
const (
	defaultMinLatency = 80 * time.Millisecond
	defaultMaxLatency = 150 * time.Millisecond
	defaultRandomSeed = 42
)

// Material is the work handed to a reviewer.
type Material struct {
	Collection string
	GroupLabel string
	Filename   string
	FileType   string
	Note       string
	Content    []byte
}

// Feedback is the reviewer's unstructured answer. ScoreText is expected to
// lead with a number in [0, 10]; see ExtractScore.
type Feedback struct {
	Text      string
	ScoreText string
}

// Reviewer is the external text-generation collaborator. Implementations
// may be slow and must honour ctx.
type Reviewer interface {
	Review(ctx context.Context, m Material) (Feedback, error)
}

// Option applies a configuration option to the InMemoryReviewer.
type Option func(*InMemoryReviewer)

// WithLatencyRange sets the simulated latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(r *InMemoryReviewer) {
		if minLatency > 0 && maxLatency > minLatency {
			r.minLatency = minLatency
			r.maxLatency = maxLatency
		}
	}
}

// InMemoryReviewer stands in for a real text-generation backend. It waits a
// random latency and grades content deterministically from its hash.
type InMemoryReviewer struct {
	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewInMemoryReviewer creates a reviewer with configuration options.
func NewInMemoryReviewer(opts ...Option) *InMemoryReviewer {
	r := &InMemoryReviewer{
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible testing
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Review grades m after the simulated latency.
func (r *InMemoryReviewer) Review(ctx context.Context, m Material) (Feedback, error) {
	select {
	case <-ctx.Done():
		return Feedback{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(r.latency()):
	}

	score := Grade(m.Content)
	return Feedback{
		Text: fmt.Sprintf("Reviewed %s (%s) for group %q: %d bytes of material.",
			nameOr(m.Filename, "submission"), nameOr(m.FileType, "unknown type"), m.GroupLabel, len(m.Content)),
		ScoreText: fmt.Sprintf("%.1f/10 overall", score),
	}, nil
}

func (r *InMemoryReviewer) latency() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minLatency + time.Duration(r.rng.Int63n(int64(r.maxLatency-r.minLatency)))
}

// Grade maps content to a stable score in [5.0, 10.0] with one decimal.
func Grade(content []byte) float64 {
	h := fnv.New32a()
	_, _ = h.Write(content)
	return float64(50+h.Sum32()%51) / 10
}

func nameOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
