// Package api exposes the record store over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/scorekeep/internal/domain/dedupe"
	"github.com/okian/scorekeep/internal/domain/leaderboard"
	"github.com/okian/scorekeep/internal/domain/model"
	"github.com/okian/scorekeep/internal/domain/submission"
	"github.com/okian/scorekeep/internal/domain/types"
)

const (
	defaultMaxLimit   = 50
	maxRequestBytes   = 1 << 20
	idempotencyHeader = "Idempotency-Key"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper
	LeaderboardDependencies
	SubmissionDependencies
	ReviewDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.RankedEntry

// LeaderboardDependencies defines the leaderboard operations.
type LeaderboardDependencies interface {
	SubmitScore(ctx context.Context, category, identity string, score float64) (leaderboard.SubmitResult, error)
	TopScores(ctx context.Context, category string) ([]Entry, error)
	TopN(ctx context.Context, category string, n int) ([]Entry, error)
	Rank(ctx context.Context, category, identity string) (Entry, error)
	ResetCategory(ctx context.Context, category string) (bool, error)
}

// SubmissionDependencies defines the submission operations.
type SubmissionDependencies interface {
	CreateSubmission(ctx context.Context, collection string, in submission.NewSubmission) (model.SubmissionRecord, error)
	AddComment(ctx context.Context, collection, id, rater, text string, score float64) (submission.CommentResult, error)
	ListSubmissions(ctx context.Context, collection string) ([]model.SubmissionRecord, error)
	GetSubmission(ctx context.Context, collection, id string) (model.SubmissionRecord, error)
}

// ReviewDependencies defines the review pipeline operations.
type ReviewDependencies interface {
	EnqueueReview(ctx context.Context, req types.ReviewRequest) (string, error)
	ReviewStatus(ctx context.Context, jobID string) (types.ReviewStatus, error)
}

// Option customizes the Server.
type Option func(*Server)

// WithMaxLimit caps the limit accepted by GET /leaderboard/{category}.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	maxLimit int
	guard    *IdempotencyGuard

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	submissionsHandler *SubmissionsHandler
	reviewsHandler     *ReviewsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{deps: deps, maxLimit: defaultMaxLimit, guard: NewIdempotencyGuard(deps)}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	s.submissionsHandler = NewSubmissionsHandler(deps)
	s.reviewsHandler = NewReviewsHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	idem := s.guard.Wrap

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /scores", MetricsMiddleware(idem(s.leaderboardHandler.HandlePostScore), "scores"))
	mux.HandleFunc("GET /leaderboard/{category}", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("DELETE /leaderboard/{category}", MetricsMiddleware(idem(s.leaderboardHandler.HandleResetLeaderboard), "leaderboard"))
	mux.HandleFunc("GET /rank/{category}/{identity}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))

	mux.HandleFunc("POST /collections/{collection}/submissions", MetricsMiddleware(idem(s.submissionsHandler.HandleCreate), "submissions"))
	mux.HandleFunc("GET /collections/{collection}/submissions", MetricsMiddleware(s.submissionsHandler.HandleList, "submissions"))
	mux.HandleFunc("GET /collections/{collection}/submissions/{id}", MetricsMiddleware(s.submissionsHandler.HandleGet, "submission"))
	mux.HandleFunc("POST /collections/{collection}/submissions/{id}/comments", MetricsMiddleware(idem(s.submissionsHandler.HandleAddComment), "comments"))

	mux.HandleFunc("POST /reviews", MetricsMiddleware(idem(s.reviewsHandler.HandlePostReview), "reviews"))
	mux.HandleFunc("GET /reviews/{jobID}", MetricsMiddleware(s.reviewsHandler.HandleGetReview, "reviews"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return wrapBadRequest(err)
	}
	return nil
}
