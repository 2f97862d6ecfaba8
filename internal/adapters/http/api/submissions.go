package api

import (
	"net/http"

	"github.com/okian/scorekeep/internal/domain/submission"
)

// SubmissionsHandler handles submission and comment requests.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

type createSubmissionRequest struct {
	GroupLabel      string   `json:"groupLabel"`
	Filename        string   `json:"filename"`
	FileType        string   `json:"fileType"`
	Note            string   `json:"note"`
	MachineFeedback string   `json:"machineFeedback"`
	ScoreFeedback   string   `json:"scoreFeedback"`
	InitialScore    *float64 `json:"initialScore"`
}

type commentRequest struct {
	Rater string   `json:"rater"`
	Text  string   `json:"text"`
	Score *float64 `json:"score"`
}

type commentResponse struct {
	Added        bool     `json:"added"`
	Duplicate    bool     `json:"duplicate"`
	AverageScore *float64 `json:"averageScore"`
	Comments     int      `json:"comments"`
}

// HandleCreate handles POST /collections/{collection}/submissions requests.
func (h *SubmissionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.deps.CreateSubmission(r.Context(), r.PathValue("collection"), submission.NewSubmission{
		GroupLabel:      req.GroupLabel,
		Filename:        req.Filename,
		FileType:        req.FileType,
		Note:            req.Note,
		MachineFeedback: req.MachineFeedback,
		ScoreFeedback:   req.ScoreFeedback,
		InitialScore:    req.InitialScore,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleList handles GET /collections/{collection}/submissions requests.
func (h *SubmissionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.deps.ListSubmissions(r.Context(), r.PathValue("collection"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleGet handles GET /collections/{collection}/submissions/{id} requests.
func (h *SubmissionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.GetSubmission(r.Context(), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleAddComment handles POST /collections/{collection}/submissions/{id}/comments requests.
func (h *SubmissionsHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Score == nil {
		writeError(w, badRequestf("missing score"))
		return
	}
	res, err := h.deps.AddComment(r.Context(), r.PathValue("collection"), r.PathValue("id"), req.Rater, req.Text, *req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !res.Added {
		status = http.StatusOK
	}
	writeJSON(w, status, commentResponse{
		Added:        res.Added,
		Duplicate:    !res.Added,
		AverageScore: res.AverageScore,
		Comments:     res.Comments,
	})
}
