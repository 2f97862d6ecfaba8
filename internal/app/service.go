// Package service wires the record store core (document store, update
// coordinator, ledger and submission store) together with the review
// pipeline, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scorekeep/internal/adapters/mq/queue"
	"github.com/okian/scorekeep/internal/adapters/mq/worker"
	"github.com/okian/scorekeep/internal/adapters/repository"
	"github.com/okian/scorekeep/internal/config"
	"github.com/okian/scorekeep/internal/domain/coordinator"
	"github.com/okian/scorekeep/internal/domain/dedupe"
	"github.com/okian/scorekeep/internal/domain/leaderboard"
	"github.com/okian/scorekeep/internal/domain/model"
	"github.com/okian/scorekeep/internal/domain/scoring"
	"github.com/okian/scorekeep/internal/domain/submission"
	"github.com/okian/scorekeep/internal/domain/types"
	"github.com/okian/scorekeep/pkg/logger"
	"github.com/okian/scorekeep/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// Service implements the API dependencies for the record store.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger

	// Core components
	store       repository.Store
	coord       *coordinator.Coordinator
	ledger      *leaderboard.Ledger
	submissions *submission.Store

	// Host-side components
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	reviewer scoring.Reviewer
	pool     *worker.Pool
	jobs     *jobTracker

	corrupt atomic.Int64
	started bool
}

// New constructs a new Service. Nothing is opened until Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the document store and starts the review workers. Workers
// keep running until Stop even if ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if err := s.cfg.Validate(ctx); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting scorekeep service...",
		logger.String("storage_driver", s.cfg.StorageDriver))

	if s.store == nil {
		store, err := repository.Open(ctx, s.cfg)
		if err != nil {
			return fmt.Errorf("start service: %w", err)
		}
		s.store = store
	}

	s.coord = coordinator.New(s.store,
		coordinator.WithLogger(s.logger.Named("coordinator")),
		coordinator.WithCorruptionHook(func(string, error) { s.corrupt.Add(1) }),
	)
	s.ledger = leaderboard.New(s.coord,
		leaderboard.WithRetention(s.cfg.LeaderboardRetention),
		leaderboard.WithDisplayLimit(s.cfg.LeaderboardDisplayLimit),
		leaderboard.WithLogger(s.logger.Named("ledger")),
	)
	s.submissions = submission.New(s.coord,
		submission.WithLogger(s.logger.Named("submissions")),
	)
	s.deduper = dedupe.NewWindow(dedupe.WithMaxSize(s.cfg.IdempotencyWindow))
	s.jobs = newJobTracker(s.cfg.ReviewQueueSize)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.ReviewQueueSize))
	if s.reviewer == nil {
		s.reviewer = scoring.NewInMemoryReviewer(scoring.WithLatencyRange(
			time.Duration(s.cfg.ReviewLatencyMinMS)*time.Millisecond,
			time.Duration(s.cfg.ReviewLatencyMaxMS)*time.Millisecond,
		))
	}
	s.pool = worker.NewPool(s.cfg.ReviewWorkers, s.queue, s.reviewer, s.submissions, s, s.logger.Named("worker"))
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "scorekeep service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.cfg.ReviewQueueSize),
		logger.Int("retention", s.cfg.LeaderboardRetention),
	)
	return nil
}

// Stop drains the review queue and closes the document store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping scorekeep service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "review workers did not drain", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing document store", logger.Error(err))
	}

	s.started = false
	s.store = nil
	s.logger.Info(ctx, "scorekeep service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SeenAndRecord atomically checks if a request id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	if s.ready() != nil {
		return false
	}
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes a request id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	if s.ready() != nil {
		return
	}
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of remembered request ids.
func (s *Service) Size() int64 {
	if s.ready() != nil {
		return 0
	}
	return s.deduper.Size()
}

// SubmitScore records score for identity in category.
func (s *Service) SubmitScore(ctx context.Context, category, identity string, score float64) (leaderboard.SubmitResult, error) {
	if err := s.ready(); err != nil {
		return leaderboard.SubmitResult{}, err
	}
	return s.ledger.SubmitScore(ctx, category, identity, score)
}

// TopScores returns the display view of category.
func (s *Service) TopScores(ctx context.Context, category string) ([]types.RankedEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	entries, err := s.ledger.TopScores(ctx, category, 0)
	if err != nil {
		return nil, err
	}
	return toRanked(entries), nil
}

// TopN returns at most n entries of category.
func (s *Service) TopN(ctx context.Context, category string, n int) ([]types.RankedEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	entries, err := s.ledger.TopN(ctx, category, n)
	if err != nil {
		return nil, err
	}
	return toRanked(entries), nil
}

// Rank returns the rank and score of identity in category.
func (s *Service) Rank(ctx context.Context, category, identity string) (types.RankedEntry, error) {
	if err := s.ready(); err != nil {
		return types.RankedEntry{}, err
	}
	return s.ledger.Rank(ctx, category, identity)
}

// ResetCategory drops every entry of category.
func (s *Service) ResetCategory(ctx context.Context, category string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.ledger.Reset(ctx, category)
}

// CreateSubmission files a new submission. An empty collection selects the
// default collection.
func (s *Service) CreateSubmission(ctx context.Context, collection string, in submission.NewSubmission) (model.SubmissionRecord, error) {
	if err := s.ready(); err != nil {
		return model.SubmissionRecord{}, err
	}
	return s.submissions.CreateSubmission(ctx, s.collection(collection), in)
}

// AddComment attaches a rated comment to a submission.
func (s *Service) AddComment(ctx context.Context, collection, id, rater, text string, score float64) (submission.CommentResult, error) {
	if err := s.ready(); err != nil {
		return submission.CommentResult{}, err
	}
	return s.submissions.AddComment(ctx, s.collection(collection), id, rater, text, score)
}

// ListSubmissions returns every record of collection.
func (s *Service) ListSubmissions(ctx context.Context, collection string) ([]model.SubmissionRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.submissions.ListSubmissions(ctx, s.collection(collection))
}

// GetSubmission returns one record.
func (s *Service) GetSubmission(ctx context.Context, collection, id string) (model.SubmissionRecord, error) {
	if err := s.ready(); err != nil {
		return model.SubmissionRecord{}, err
	}
	return s.submissions.Get(ctx, s.collection(collection), id)
}

// MaxLeaderboardLimit returns the largest limit accepted by TopN callers.
func (s *Service) MaxLeaderboardLimit() int { return s.cfg.MaxLeaderboardLimit }

func (s *Service) collection(c string) string {
	if strings.TrimSpace(c) == "" {
		return s.cfg.DefaultCollection
	}
	return c
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"storageDriver": s.cfg.StorageDriver,
		"workerCount":   s.cfg.ReviewWorkers,
		"queueCapacity": s.cfg.ReviewQueueSize,
		"retention":     s.cfg.LeaderboardRetention,
		"displayLimit":  s.cfg.LeaderboardDisplayLimit,
	}

	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["pendingReviews"] = s.jobs.pending()
		stats["activeKeys"] = s.coord.ActiveKeys()
		stats["corruptDocuments"] = s.corrupt.Load()
		stats["idempotencyKeys"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

func toRanked(entries []model.ScoreEntry) []types.RankedEntry {
	out := make([]types.RankedEntry, len(entries))
	for i, e := range entries {
		out[i] = types.RankedEntry{Rank: i + 1, Identity: e.Identity, Score: e.Score, RecordedAt: e.RecordedAt}
	}
	return out
}
