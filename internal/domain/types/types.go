// Package types contains view types shared by the domain and its callers.
package types

import "time"

// RankedEntry is a leaderboard row with its 1-based position.
type RankedEntry struct {
	Rank       int       `json:"rank"`
	Identity   string    `json:"identity"`
	Score      float64   `json:"score"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Review job states.
const (
	ReviewPending = "pending"
	ReviewDone    = "done"
	ReviewFailed  = "failed"
)

// ReviewRequest asks for an upload to be graded and filed. An empty
// Collection selects the default collection.
type ReviewRequest struct {
	Collection string `json:"collection"`
	GroupLabel string `json:"groupLabel"`
	Filename   string `json:"filename"`
	FileType   string `json:"fileType"`
	Note       string `json:"note"`
	Content    []byte `json:"content,omitempty"`
}

// ReviewStatus reports where a review job is.
type ReviewStatus struct {
	JobID        string    `json:"jobId"`
	Collection   string    `json:"collection"`
	State        string    `json:"state"`
	SubmissionID string    `json:"submissionId,omitempty"`
	Error        string    `json:"error,omitempty"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}
