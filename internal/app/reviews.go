package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scorekeep/internal/adapters/mq/queue"
	"github.com/okian/scorekeep/internal/domain/errs"
	"github.com/okian/scorekeep/internal/domain/model"
	"github.com/okian/scorekeep/internal/domain/types"
	"github.com/okian/scorekeep/pkg/logger"
	"github.com/okian/scorekeep/pkg/metrics"
)

// Aliases for the review view types.
type (
	ReviewRequest = types.ReviewRequest
	ReviewStatus  = types.ReviewStatus
)

// Review job states.
const (
	ReviewPending = types.ReviewPending
	ReviewDone    = types.ReviewDone
	ReviewFailed  = types.ReviewFailed
)

// jobTracker keeps the most recent review job statuses. Once more than
// limit jobs are tracked the oldest finished ones are forgotten.
type jobTracker struct {
	mu    sync.Mutex
	jobs  map[string]*ReviewStatus
	order []string
	limit int
}

func newJobTracker(limit int) *jobTracker {
	return &jobTracker{jobs: make(map[string]*ReviewStatus), limit: limit}
}

func (t *jobTracker) add(st ReviewStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[st.JobID] = &st
	t.order = append(t.order, st.JobID)
	t.evict()
}

func (t *jobTracker) evict() {
	if t.limit <= 0 {
		return
	}
	kept := t.order[:0]
	over := len(t.order) - t.limit
	for _, id := range t.order {
		st := t.jobs[id]
		if over > 0 && st != nil && st.State != ReviewPending {
			delete(t.jobs, id)
			over--
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

func (t *jobTracker) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *jobTracker) update(id string, fn func(*ReviewStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.jobs[id]; ok {
		fn(st)
	}
}

func (t *jobTracker) get(id string) (ReviewStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.jobs[id]
	if !ok {
		return ReviewStatus{}, false
	}
	return *st, true
}

func (t *jobTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, st := range t.jobs {
		if st.State == ReviewPending {
			n++
		}
	}
	return n
}

// EnqueueReview queues an upload for grading. The returned job id can be
// polled with ReviewStatus. A full queue yields queue.ErrFull.
func (s *Service) EnqueueReview(ctx context.Context, req ReviewRequest) (string, error) {
	const op = "service.enqueue_review"
	if err := s.ready(); err != nil {
		return "", err
	}
	collection := strings.TrimSpace(req.Collection)
	if collection == "" {
		collection = s.cfg.DefaultCollection
	}
	if strings.TrimSpace(req.Filename) == "" && len(req.Content) == 0 {
		return "", errs.Newf(op, errs.ErrValidation, "filename or content is required")
	}

	job := queue.Job{
		JobID:      uuid.New().String(),
		Collection: collection,
		GroupLabel: strings.TrimSpace(req.GroupLabel),
		Filename:   req.Filename,
		FileType:   req.FileType,
		Note:       req.Note,
		Content:    req.Content,
		EnqueuedAt: time.Now().UTC(),
	}
	s.jobs.add(ReviewStatus{JobID: job.JobID, Collection: collection, State: ReviewPending, EnqueuedAt: job.EnqueuedAt})
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.jobs.remove(job.JobID)
		metrics.RecordErrorByComponent("service", "enqueue_failed")
		return "", errs.Wrap(op, err)
	}
	metrics.UpdateQueueSize(s.queue.Len())
	s.logger.Debug(ctx, "review job enqueued",
		logger.String("job_id", job.JobID),
		logger.String("collection", collection))
	return job.JobID, nil
}

// ReviewStatus returns the status of a review job.
func (s *Service) ReviewStatus(_ context.Context, jobID string) (ReviewStatus, error) {
	const op = "service.review_status"
	if err := s.ready(); err != nil {
		return ReviewStatus{}, err
	}
	st, ok := s.jobs.get(jobID)
	if !ok {
		return ReviewStatus{}, errs.Newf(op, errs.ErrNotFound, "review job %q", jobID)
	}
	return st, nil
}

// Completed records a filed review. It satisfies worker.Reporter.
func (s *Service) Completed(jobID string, rec model.SubmissionRecord) {
	s.jobs.update(jobID, func(st *ReviewStatus) {
		st.State = ReviewDone
		st.SubmissionID = rec.ID
	})
	metrics.UpdateQueueSize(s.queue.Len())
}

// Failed records a review that could not be filed. It satisfies worker.Reporter.
func (s *Service) Failed(jobID string, err error) {
	s.jobs.update(jobID, func(st *ReviewStatus) {
		st.State = ReviewFailed
		st.Error = err.Error()
	})
	metrics.UpdateQueueSize(s.queue.Len())
}
