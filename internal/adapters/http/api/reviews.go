package api

import (
	"net/http"

	"github.com/okian/scorekeep/internal/domain/types"
)

// ReviewsHandler handles review pipeline requests.
type ReviewsHandler struct {
	deps ReviewDependencies
}

// NewReviewsHandler creates a new reviews handler.
func NewReviewsHandler(deps ReviewDependencies) *ReviewsHandler {
	return &ReviewsHandler{deps: deps}
}

type reviewAccepted struct {
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}

// HandlePostReview handles POST /reviews requests. Content is base64 in JSON.
func (h *ReviewsHandler) HandlePostReview(w http.ResponseWriter, r *http.Request) {
	var req types.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	jobID, err := h.deps.EnqueueReview(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, reviewAccepted{Status: "accepted", JobID: jobID})
}

// HandleGetReview handles GET /reviews/{jobID} requests.
func (h *ReviewsHandler) HandleGetReview(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.ReviewStatus(r.Context(), r.PathValue("jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
