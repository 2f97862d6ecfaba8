package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/scorekeep/internal/domain/leaderboard"
)

// LeaderboardHandler handles score and leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

type scoreRequest struct {
	Category string   `json:"category"`
	Identity string   `json:"identity"`
	Score    *float64 `json:"score"`
}

type scoreResponse struct {
	Updated    bool                `json:"updated"`
	Outcome    leaderboard.Outcome `json:"outcome"`
	Score      float64             `json:"score,omitempty"`
	RecordedAt *time.Time          `json:"recordedAt,omitempty"`
}

// HandlePostScore handles POST /scores requests.
func (h *LeaderboardHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Score == nil {
		writeError(w, badRequestf("missing score"))
		return
	}
	res, err := h.deps.SubmitScore(r.Context(), req.Category, req.Identity, *req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	out := scoreResponse{Updated: res.Updated, Outcome: res.Outcome}
	if !res.Entry.RecordedAt.IsZero() {
		out.Score = res.Entry.Score
		out.RecordedAt = &res.Entry.RecordedAt
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetLeaderboard handles GET /leaderboard/{category}?limit=N requests.
// Without limit the display view is returned.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		entries, err := h.deps.TopScores(r.Context(), category)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}
	n, err := strconv.Atoi(limitStr)
	if err != nil || n < 1 {
		writeError(w, badRequestf("limit must be a positive integer"))
		return
	}
	if n > h.maxLimit {
		writeError(w, badRequestf("limit must not exceed %d", h.maxLimit))
		return
	}
	entries, err := h.deps.TopN(r.Context(), category, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleResetLeaderboard handles DELETE /leaderboard/{category} requests.
func (h *LeaderboardHandler) HandleResetLeaderboard(w http.ResponseWriter, r *http.Request) {
	changed, err := h.deps.ResetCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": changed})
}
