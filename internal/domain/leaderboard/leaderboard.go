// Package leaderboard keeps, per category, the bounded ranked set of each
// identity's best score.
package leaderboard

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/scorekeep/internal/adapters/repository"
	"github.com/okian/scorekeep/internal/domain/coordinator"
	"github.com/okian/scorekeep/internal/domain/errs"
	"github.com/okian/scorekeep/internal/domain/model"
	"github.com/okian/scorekeep/internal/domain/types"
	"github.com/okian/scorekeep/pkg/logger"
	"github.com/okian/scorekeep/pkg/metrics"
)

// Default bounds.
const (
	DefaultRetention    = 50
	DefaultDisplayLimit = 5
)

const keyPrefix = "leaderboard/"

// Outcome describes what a score submission did.
type Outcome string

const (
	// OutcomeInserted: first score for the identity in the category.
	OutcomeInserted Outcome = "inserted"
	// OutcomeImproved: a strictly higher score replaced the stored best.
	OutcomeImproved Outcome = "improved"
	// OutcomeUnchanged: the score did not beat the stored best.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeBelowCutoff: a new identity whose score falls outside the
	// retention bound. Nothing is stored.
	OutcomeBelowCutoff Outcome = "below_cutoff"
)

// SubmitResult is the result of SubmitScore.
type SubmitResult struct {
	Updated bool
	Outcome Outcome
	// Entry is the identity's stored entry after the call; zero when
	// the outcome is OutcomeBelowCutoff.
	Entry model.ScoreEntry
}

// Ledger maintains per-category leaderboards.
type Ledger struct {
	coord        *coordinator.Coordinator
	retention    int
	displayLimit int
	now          func() time.Time
	log          logger.Logger
}

// New creates a ledger on top of coord.
func New(coord *coordinator.Coordinator, opts ...Option) *Ledger {
	l := &Ledger{
		coord:        coord,
		retention:    DefaultRetention,
		displayLimit: DefaultDisplayLimit,
		now:          time.Now,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.displayLimit > l.retention {
		l.displayLimit = l.retention
	}
	return l
}

// Key returns the document key of category.
func Key(category string) string {
	return keyPrefix + repository.EscapeSegment(category)
}

// DisplayLimit returns the size of the display view.
func (l *Ledger) DisplayLimit() int { return l.displayLimit }

// SubmitScore records score for identity in category if it beats the
// identity's stored best, then re-ranks and truncates to the retention bound.
// A score that does not improve anything is a successful no-op.
func (l *Ledger) SubmitScore(ctx context.Context, category, identity string, score float64) (SubmitResult, error) {
	const op = "ledger.submit_score"
	category, identity = strings.TrimSpace(category), strings.TrimSpace(identity)
	if err := validateSubmission(op, category, identity, score); err != nil {
		metrics.RecordScoreSubmission(metrics.OutcomeRejected)
		return SubmitResult{}, err
	}

	var res SubmitResult
	doc, _, err := coordinator.Update(ctx, l.coord, Key(category), func(doc *model.LeaderboardDocument) (bool, error) {
		res = SubmitResult{}
		doc.Category = category
		now := l.now().UTC()

		i := doc.Find(identity)
		switch {
		case i < 0:
			doc.Entries = append(doc.Entries, model.ScoreEntry{
				Identity: identity, Category: category, Score: score, RecordedAt: now,
			})
			res.Outcome = OutcomeInserted
		case score > doc.Entries[i].Score:
			doc.Entries[i].Score = score
			doc.Entries[i].RecordedAt = now
			res.Outcome = OutcomeImproved
		default:
			res.Outcome = OutcomeUnchanged
			return false, nil
		}

		rank(doc.Entries)
		if len(doc.Entries) > l.retention {
			doc.Entries = doc.Entries[:l.retention]
		}
		if res.Outcome == OutcomeInserted && doc.Find(identity) < 0 {
			res.Outcome = OutcomeBelowCutoff
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		metrics.RecordScoreSubmission(metrics.OutcomeFailed)
		return SubmitResult{}, errs.Wrap(op, err)
	}

	if i := doc.Find(identity); i >= 0 && res.Outcome != OutcomeBelowCutoff {
		res.Entry = doc.Entries[i]
	}
	res.Updated = res.Outcome == OutcomeInserted || res.Outcome == OutcomeImproved
	metrics.RecordScoreSubmission(string(res.Outcome))
	l.log.Debug(ctx, "score submitted",
		logger.String("category", category),
		logger.String("identity", identity),
		logger.Float64("score", score),
		logger.String("outcome", string(res.Outcome)))
	return res, nil
}

// TopN returns at most n entries of category, best first. An unknown
// category yields an empty list.
func (l *Ledger) TopN(ctx context.Context, category string, n int) ([]model.ScoreEntry, error) {
	const op = "ledger.top_n"
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errs.Newf(op, errs.ErrValidation, "category must not be empty")
	}
	if n < 1 {
		return nil, errs.Newf(op, errs.ErrValidation, "limit must be at least 1, got %d", n)
	}
	entries, err := l.ranked(ctx, category)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// TopScores returns the display view of category. limit <= 0 selects the
// display limit; larger limits are clamped to it.
func (l *Ledger) TopScores(ctx context.Context, category string, limit int) ([]model.ScoreEntry, error) {
	if limit <= 0 || limit > l.displayLimit {
		limit = l.displayLimit
	}
	return l.TopN(ctx, category, limit)
}

// Rank returns identity's 1-based position in category.
func (l *Ledger) Rank(ctx context.Context, category, identity string) (types.RankedEntry, error) {
	const op = "ledger.rank"
	category, identity = strings.TrimSpace(category), strings.TrimSpace(identity)
	if category == "" || identity == "" {
		return types.RankedEntry{}, errs.Newf(op, errs.ErrValidation, "category and identity must not be empty")
	}
	entries, err := l.ranked(ctx, category)
	if err != nil {
		return types.RankedEntry{}, errs.Wrap(op, err)
	}
	for i, e := range entries {
		if e.Identity == identity {
			return types.RankedEntry{Rank: i + 1, Identity: e.Identity, Score: e.Score, RecordedAt: e.RecordedAt}, nil
		}
	}
	metrics.RecordErrorByComponent("ledger", "not_found")
	return types.RankedEntry{}, errs.Newf(op, errs.ErrNotFound, "identity %q has no score in category %q", identity, category)
}

// Reset drops every entry of category. Resetting an empty category is a no-op.
func (l *Ledger) Reset(ctx context.Context, category string) (bool, error) {
	const op = "ledger.reset"
	category = strings.TrimSpace(category)
	if category == "" {
		return false, errs.Newf(op, errs.ErrValidation, "category must not be empty")
	}
	_, changed, err := coordinator.Update(ctx, l.coord, Key(category), func(doc *model.LeaderboardDocument) (bool, error) {
		if len(doc.Entries) == 0 {
			return false, nil
		}
		doc.Category = category
		doc.Entries = []model.ScoreEntry{}
		return true, nil
	})
	if err != nil {
		return false, errs.Wrap(op, err)
	}
	if changed {
		l.log.Info(ctx, "category reset", logger.String("category", category))
	}
	return changed, nil
}

// ranked reads category and returns its entries in rank order, bounded by
// retention. The stored order is not trusted since the document may have
// been edited outside the ledger.
func (l *Ledger) ranked(ctx context.Context, category string) ([]model.ScoreEntry, error) {
	doc, err := coordinator.Read[model.LeaderboardDocument](ctx, l.coord, Key(category))
	if err != nil {
		return nil, err
	}
	entries := make([]model.ScoreEntry, len(doc.Entries))
	copy(entries, doc.Entries)
	rank(entries)
	if len(entries) > l.retention {
		entries = entries[:l.retention]
	}
	return entries, nil
}

// rank orders entries by score desc, then earlier recordedAt first. The
// sort is stable so equal entries keep insertion order.
func rank(entries []model.ScoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
}

func validateSubmission(op, category, identity string, score float64) error {
	switch {
	case category == "":
		return errs.Newf(op, errs.ErrValidation, "category must not be empty")
	case identity == "":
		return errs.Newf(op, errs.ErrValidation, "identity must not be empty")
	case math.IsNaN(score) || math.IsInf(score, 0):
		return errs.Newf(op, errs.ErrValidation, "score must be finite")
	case score < 0:
		return errs.Newf(op, errs.ErrValidation, "score must not be negative, got %v", score)
	}
	return nil
}
