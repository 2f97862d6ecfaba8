package model

import (
	"time"

	"github.com/okian/scorekeep/internal/domain/scoring"
)

// MachineRater is the synthetic rater attributed to scores produced by the
// text-generation reviewer.
const MachineRater = "AI"

// Comment is an immutable human (or machine) judgement on a submission.
type Comment struct {
	Rater string  `json:"rater"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SubmissionRecord is one uploaded piece of work with its scores.
//
// DerivedScores holds every score ever attached, machine and human, in
// arrival order; ScoreSources names the rater of each slot. AverageScore is
// nil whenever DerivedScores is empty.
type SubmissionRecord struct {
	ID              string    `json:"id"`
	GroupLabel      string    `json:"groupLabel"`
	Filename        string    `json:"filename,omitempty"`
	FileType        string    `json:"fileType,omitempty"`
	Note            string    `json:"note,omitempty"`
	MachineFeedback string    `json:"machineFeedback,omitempty"`
	ScoreFeedback   string    `json:"scoreFeedback,omitempty"`
	Comments        []Comment `json:"comments"`
	DerivedScores   []float64 `json:"derivedScores"`
	ScoreSources    []string  `json:"scoreSources,omitempty"`
	AverageScore    *float64  `json:"averageScore"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AddScore appends a score from rater and refreshes the average.
func (r *SubmissionRecord) AddScore(rater string, score float64) {
	r.alignSources()
	r.DerivedScores = append(r.DerivedScores, score)
	r.ScoreSources = append(r.ScoreSources, rater)
	r.Recompute()
}

// Recompute derives AverageScore from DerivedScores.
func (r *SubmissionRecord) Recompute() {
	r.AverageScore = scoring.Average(r.DerivedScores)
}

// HasComment reports whether an identical comment is already attached.
func (r *SubmissionRecord) HasComment(c Comment) bool {
	for _, existing := range r.Comments {
		if existing == c {
			return true
		}
	}
	return false
}

// Normalize makes slices non-nil so they encode as [] and recomputes the
// average, repairing documents whose stored average or sources drifted.
func (r *SubmissionRecord) Normalize() {
	if r.Comments == nil {
		r.Comments = []Comment{}
	}
	if r.DerivedScores == nil {
		r.DerivedScores = []float64{}
	}
	r.alignSources()
	r.Recompute()
}

// alignSources keeps ScoreSources parallel to DerivedScores. Records written
// before sources were tracked get "" for each unattributed score.
func (r *SubmissionRecord) alignSources() {
	n := len(r.DerivedScores)
	if len(r.ScoreSources) > n {
		r.ScoreSources = r.ScoreSources[:n]
	}
	for len(r.ScoreSources) < n {
		r.ScoreSources = append(r.ScoreSources, "")
	}
}

// SubmissionDocument is the persisted form of one collection.
type SubmissionDocument struct {
	Collection  string             `json:"collection"`
	Submissions []SubmissionRecord `json:"submissions"`
}

// Find returns the index of the submission with id, or -1.
func (d *SubmissionDocument) Find(id string) int {
	for i := range d.Submissions {
		if d.Submissions[i].ID == id {
			return i
		}
	}
	return -1
}
