// Package worker runs review jobs: each job is graded by the reviewer and
// filed as a submission seeded with the extracted machine score.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/scorekeep/internal/adapters/mq/queue"
	"github.com/okian/scorekeep/internal/domain/model"
	"github.com/okian/scorekeep/internal/domain/scoring"
	"github.com/okian/scorekeep/internal/domain/submission"
	"github.com/okian/scorekeep/pkg/logger"
	"github.com/okian/scorekeep/pkg/metrics"
)

const defaultWorkerCount = 2

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Creator files a reviewed submission.
type Creator interface {
	CreateSubmission(ctx context.Context, collection string, in submission.NewSubmission) (model.SubmissionRecord, error)
}

// Reporter observes job outcomes.
type Reporter interface {
	Completed(jobID string, rec model.SubmissionRecord)
	Failed(jobID string, err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan Job
}

// Worker processes review jobs until its queue is closed and drained.
type Worker struct {
	queue    Queue
	reviewer scoring.Reviewer
	creator  Creator
	reporter Reporter
	name     string
	logger   logger.Logger

	done chan struct{}
}

// NewWorker creates a worker with configuration options.
func NewWorker(q Queue, reviewer scoring.Reviewer, creator Creator, reporter Reporter, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		reviewer: reviewer,
		creator:  creator,
		reporter: reporter,
		name:     "worker",
		logger:   logger.Nop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes jobs until the queue channel closes or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "review job failed",
					logger.String("worker", w.name),
					logger.String("job_id", job.JobID),
					logger.Error(err))
			}
		}
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) process(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	fb, err := w.reviewer.Review(ctx, scoring.Material{
		Collection: job.Collection,
		GroupLabel: job.GroupLabel,
		Filename:   job.Filename,
		FileType:   job.FileType,
		Note:       job.Note,
		Content:    job.Content,
	})
	metrics.RecordReviewLatency(time.Since(start).Seconds())
	if err != nil {
		return w.fail(job, fmt.Errorf("review: %w", err))
	}

	in := submission.NewSubmission{
		GroupLabel:      job.GroupLabel,
		Filename:        job.Filename,
		FileType:        job.FileType,
		Note:            job.Note,
		MachineFeedback: fb.Text,
		ScoreFeedback:   fb.ScoreText,
	}
	if score, ok := scoring.ExtractScore(fb.ScoreText); ok {
		in.InitialScore = &score
	} else {
		w.logger.Warn(ctx, "no machine score in reviewer feedback", logger.String("job_id", job.JobID))
	}

	rec, err := w.creator.CreateSubmission(ctx, job.Collection, in)
	if err != nil {
		return w.fail(job, fmt.Errorf("create submission: %w", err))
	}

	metrics.RecordReviewJob(metrics.OutcomeCompleted)
	w.reporter.Completed(job.JobID, rec)
	w.logger.Debug(ctx, "review job completed",
		logger.String("worker", w.name),
		logger.String("job_id", job.JobID),
		logger.String("submission_id", rec.ID),
		logger.Duration("took", time.Since(start)))
	return nil
}

func (w *Worker) fail(job Job, err error) error { //nolint:gocritic // hugeParam
	metrics.RecordReviewJob(metrics.OutcomeFailed)
	metrics.RecordErrorByComponent("worker", "review_failed")
	w.reporter.Failed(job.JobID, err)
	return err
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*Worker
	queue   queue.Queue
	logger  logger.Logger

	cancel  context.CancelFunc
	started bool
	once    sync.Once
}

// NewPool creates workerCount workers over q.
func NewPool(workerCount int, q queue.Queue, reviewer scoring.Reviewer, creator Creator, reporter Reporter, lg logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	if lg == nil {
		lg = logger.Nop()
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		queue:   q,
		logger:  lg,
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewWorker(q, reviewer, creator, reporter,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(lg),
		)
	}
	metrics.UpdateWorkerCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker. Jobs run under a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers to drain it. If ctx
// expires first, in-flight jobs are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if cerr := p.queue.Close(); cerr != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
		}
		if !p.started {
			return
		}
		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-ctx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("shutdown timed out: %w", ctx.Err())
			}
			if err != nil {
				break
			}
		}
		if p.cancel != nil {
			p.cancel()
		}
		metrics.UpdateWorkerCount(0)
	})
	return err
}
