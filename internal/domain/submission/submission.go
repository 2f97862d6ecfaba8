// Package submission keeps annotated submission records per collection:
// the uploaded work, an optional machine score and any number of human
// comments, with a running average over every score.
package submission

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scorekeep/internal/adapters/repository"
	"github.com/okian/scorekeep/internal/domain/coordinator"
	"github.com/okian/scorekeep/internal/domain/errs"
	"github.com/okian/scorekeep/internal/domain/model"
	"github.com/okian/scorekeep/internal/domain/scoring"
	"github.com/okian/scorekeep/pkg/logger"
	"github.com/okian/scorekeep/pkg/metrics"
)

const keyPrefix = "submissions/"

// NewSubmission describes a record to create. InitialScore, when set, is a
// machine score in [0, 10] attributed to model.MachineRater.
type NewSubmission struct {
	GroupLabel      string
	Filename        string
	FileType        string
	Note            string
	MachineFeedback string
	ScoreFeedback   string
	InitialScore    *float64
}

// CommentResult is the result of AddComment.
type CommentResult struct {
	// Added is false when an identical comment was already attached.
	Added        bool
	AverageScore *float64
	Comments     int
}

// Store maintains submission records.
type Store struct {
	coord *coordinator.Coordinator
	now   func() time.Time
	newID func() string
	log   logger.Logger
}

// New creates a submission store on top of coord.
func New(coord *coordinator.Coordinator, opts ...Option) *Store {
	s := &Store{
		coord: coord,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the document key of collection.
func Key(collection string) string {
	return keyPrefix + repository.EscapeSegment(collection)
}

// CreateSubmission appends a new record to collection, creating the
// collection on first use.
func (s *Store) CreateSubmission(ctx context.Context, collection string, in NewSubmission) (model.SubmissionRecord, error) {
	const op = "submissions.create"
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return model.SubmissionRecord{}, errs.Newf(op, errs.ErrValidation, "collection must not be empty")
	}
	if in.InitialScore != nil {
		if err := scoring.ValidateRating(*in.InitialScore); err != nil {
			return model.SubmissionRecord{}, errs.WrapKind(op, errs.ErrValidation, err)
		}
	}

	rec := model.SubmissionRecord{
		ID:              s.newID(),
		GroupLabel:      strings.TrimSpace(in.GroupLabel),
		Filename:        in.Filename,
		FileType:        in.FileType,
		Note:            in.Note,
		MachineFeedback: in.MachineFeedback,
		ScoreFeedback:   in.ScoreFeedback,
		CreatedAt:       s.now().UTC(),
	}
	rec.Normalize()
	if in.InitialScore != nil {
		rec.AddScore(model.MachineRater, *in.InitialScore)
	}

	_, _, err := coordinator.Update(ctx, s.coord, Key(collection), func(doc *model.SubmissionDocument) (bool, error) {
		doc.Collection = collection
		doc.Submissions = append(doc.Submissions, rec)
		return true, nil
	})
	if err != nil {
		return model.SubmissionRecord{}, errs.Wrap(op, err)
	}

	metrics.RecordSubmissionCreated(in.InitialScore != nil)
	s.log.Info(ctx, "submission created",
		logger.String("collection", collection),
		logger.String("id", rec.ID),
		logger.String("group", rec.GroupLabel),
		logger.Bool("scored", in.InitialScore != nil))
	return rec, nil
}

// AddComment attaches a rated comment to submission id in collection and
// folds its score into the average. An identical comment (same rater, text
// and score) already on the record is a successful no-op.
func (s *Store) AddComment(ctx context.Context, collection, id, rater, text string, score float64) (CommentResult, error) {
	const op = "submissions.add_comment"
	collection = strings.TrimSpace(collection)
	c := model.Comment{Rater: strings.TrimSpace(rater), Text: strings.TrimSpace(text), Score: score}
	if err := validateComment(op, collection, id, c); err != nil {
		metrics.RecordComment(metrics.OutcomeRejected)
		return CommentResult{}, err
	}

	var res CommentResult
	_, _, err := coordinator.Update(ctx, s.coord, Key(collection), func(doc *model.SubmissionDocument) (bool, error) {
		i := doc.Find(id)
		if i < 0 {
			if len(doc.Submissions) == 0 {
				return false, errs.Newf(op, errs.ErrNotFound, "collection %q", collection)
			}
			return false, errs.Newf(op, errs.ErrNotFound, "submission %q in collection %q", id, collection)
		}
		rec := &doc.Submissions[i]
		rec.Normalize()
		if rec.HasComment(c) {
			res = CommentResult{Added: false, AverageScore: rec.AverageScore, Comments: len(rec.Comments)}
			return false, nil
		}
		rec.Comments = append(rec.Comments, c)
		rec.AddScore(c.Rater, c.Score)
		res = CommentResult{Added: true, AverageScore: rec.AverageScore, Comments: len(rec.Comments)}
		return true, nil
	})
	if err != nil {
		if errs.KindOf(err) == errs.ErrNotFound {
			metrics.RecordComment(metrics.OutcomeRejected)
		}
		return CommentResult{}, errs.Wrap(op, err)
	}

	if res.Added {
		metrics.RecordComment(metrics.OutcomeAdded)
	} else {
		metrics.RecordComment(metrics.OutcomeDuplicate)
	}
	s.log.Debug(ctx, "comment processed",
		logger.String("collection", collection),
		logger.String("id", id),
		logger.String("rater", c.Rater),
		logger.Bool("added", res.Added))
	return res, nil
}

// ListSubmissions returns the records of collection in creation order with
// averages recomputed from their scores. An unknown collection yields an
// empty list.
func (s *Store) ListSubmissions(ctx context.Context, collection string) ([]model.SubmissionRecord, error) {
	const op = "submissions.list"
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, errs.Newf(op, errs.ErrValidation, "collection must not be empty")
	}
	doc, err := coordinator.Read[model.SubmissionDocument](ctx, s.coord, Key(collection))
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	out := make([]model.SubmissionRecord, len(doc.Submissions))
	for i := range doc.Submissions {
		out[i] = doc.Submissions[i]
		out[i].Normalize()
	}
	return out, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, collection, id string) (model.SubmissionRecord, error) {
	const op = "submissions.get"
	recs, err := s.ListSubmissions(ctx, collection)
	if err != nil {
		return model.SubmissionRecord{}, err
	}
	for _, r := range recs {
		if r.ID == id {
			return r, nil
		}
	}
	return model.SubmissionRecord{}, errs.Newf(op, errs.ErrNotFound, "submission %q in collection %q", id, collection)
}

func validateComment(op, collection, id string, c model.Comment) error {
	switch {
	case collection == "":
		return errs.Newf(op, errs.ErrValidation, "collection must not be empty")
	case strings.TrimSpace(id) == "":
		return errs.Newf(op, errs.ErrValidation, "submission id must not be empty")
	case c.Rater == "":
		return errs.Newf(op, errs.ErrValidation, "rater must not be empty")
	case c.Text == "":
		return errs.Newf(op, errs.ErrValidation, "comment text must not be empty")
	case math.IsNaN(c.Score):
		return errs.Newf(op, errs.ErrValidation, "score must be a number")
	}
	if err := scoring.ValidateRating(c.Score); err != nil {
		return errs.WrapKind(op, errs.ErrValidation, err)
	}
	return nil
}
