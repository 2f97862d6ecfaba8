// Package loadcheck drives a running scorekeep service with concurrent
// writers and verifies that no update was lost.
package loadcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/scorekeep/pkg/logger"
)

// Run executes the complete load check.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	lg := logger.Named("loadcheck")
	if cfg.Category == "" {
		cfg.Category = "loadcheck-" + uuid.NewString()[:8]
	}

	lg.Info(ctx, "starting load check",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("category", cfg.Category),
		logger.Int("identities", cfg.Identities),
		logger.Int("comments", cfg.Comments),
		logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if _, err := client.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	sent, err := submitScores(ctx, cfg, client, stats)
	if err != nil {
		return stats, fmt.Errorf("score submission failed: %w", err)
	}
	if err := verifyLeaderboard(ctx, cfg, client, sent); err != nil {
		return stats, fmt.Errorf("leaderboard verification failed: %w", err)
	}
	lg.Info(ctx, "leaderboard verified", logger.Int("submitted", len(sent)))

	if cfg.Comments > 0 {
		id, scores, err := submitComments(ctx, cfg, client, stats)
		if err != nil {
			return stats, fmt.Errorf("comment submission failed: %w", err)
		}
		if err := verifySubmission(ctx, cfg, client, id, scores); err != nil {
			return stats, fmt.Errorf("submission verification failed: %w", err)
		}
		lg.Info(ctx, "submission verified", logger.String("id", id), logger.Int("comments", len(scores)))
	}

	stats.Duration = time.Since(stats.StartTime)
	lg.Info(ctx, "load check passed",
		logger.Int("scoresSubmitted", stats.ScoresSubmitted),
		logger.Int("commentsSubmitted", stats.CommentsSubmitted),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// scoreFor spreads scores so that ties occur but most identities differ.
func scoreFor(i int) float64 {
	return float64((i*37)%1000) / 10
}

// submitScores posts one score per identity concurrently and returns what
// was sent, keyed by identity.
func submitScores(ctx context.Context, cfg *Config, client *httpClient, stats *Stats) (map[string]float64, error) {
	sent := make(map[string]float64, cfg.Identities)
	for i := 0; i < cfg.Identities; i++ {
		sent[fmt.Sprintf("id-%05d", i)] = scoreFor(i)
	}

	var ok, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for identity, score := range sent {
		g.Go(func() error {
			body := map[string]any{"category": cfg.Category, "identity": identity, "score": score}
			if _, err := client.do(gctx, http.MethodPost, "/scores", body, nil); err != nil {
				failed.Add(1)
				return err
			}
			ok.Add(1)
			return nil
		})
	}
	err := g.Wait()
	stats.ScoresSubmitted = int(ok.Load())
	stats.ScoresFailed = int(failed.Load())
	return sent, err
}

// submitComments creates a submission and posts cfg.Comments distinct
// comments onto it concurrently. It returns the submission id and the scores sent.
func submitComments(ctx context.Context, cfg *Config, client *httpClient, stats *Stats) (string, []float64, error) {
	var rec Record
	path := "/collections/" + url.PathEscape(cfg.Collection) + "/submissions"
	if _, err := client.do(ctx, http.MethodPost, path, map[string]any{"groupLabel": "loadcheck"}, &rec); err != nil {
		return "", nil, err
	}

	scores := make([]float64, cfg.Comments)
	for i := range scores {
		scores[i] = float64(i % 11)
	}

	var ok, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, score := range scores {
		g.Go(func() error {
			body := map[string]any{"rater": fmt.Sprintf("rater-%05d", i), "text": "load check", "score": score}
			if _, err := client.do(gctx, http.MethodPost, path+"/"+url.PathEscape(rec.ID)+"/comments", body, nil); err != nil {
				failed.Add(1)
				return err
			}
			ok.Add(1)
			return nil
		})
	}
	err := g.Wait()
	stats.CommentsSubmitted = int(ok.Load())
	stats.CommentsFailed = int(failed.Load())
	return rec.ID, scores, err
}
