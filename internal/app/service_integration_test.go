package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	service "github.com/okian/scorekeep/internal/app"
	"github.com/okian/scorekeep/internal/adapters/mq/queue"
	"github.com/okian/scorekeep/internal/config"
	"github.com/okian/scorekeep/internal/domain/errs"
	"github.com/okian/scorekeep/internal/domain/model"
	"github.com/okian/scorekeep/internal/domain/scoring"
	"github.com/okian/scorekeep/internal/domain/submission"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedReviewer struct {
	scoreText string
	err       error
	block     chan struct{}
}

func (r *fixedReviewer) Review(ctx context.Context, m scoring.Material) (scoring.Feedback, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return scoring.Feedback{}, ctx.Err()
		}
	}
	if r.err != nil {
		return scoring.Feedback{}, r.err
	}
	return scoring.Feedback{Text: "reviewed " + m.Filename, ScoreText: r.scoreText}, nil
}

func waitForReview(svc *service.Service, jobID string) service.ReviewStatus {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := svc.ReviewStatus(context.Background(), jobID)
		So(err, ShouldBeNil)
		if st.State != service.ReviewPending {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _ := svc.ReviewStatus(context.Background(), jobID)
	return st
}

func TestServiceIntegration_LongNames(t *testing.T) {
	Convey("Given a service over the file driver", t, func() {
		cfg := memoryConfig()
		cfg.StorageDriver = config.DriverFile
		cfg.DataDir = t.TempDir()
		ctx := context.Background()

		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		name := "Đề kiểm tra giữa học kỳ hai môn Ngữ văn lớp mười một năm học hai nghìn không trăm hai mươi lăm"

		Convey("When a score lands in a long Vietnamese category", func() {
			res, err := svc.SubmitScore(ctx, name, "an", 8.5)
			So(err, ShouldBeNil)
			So(res.Updated, ShouldBeTrue)

			Convey("Then it reads back", func() {
				top, err := svc.TopN(ctx, name, 5)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 1)
				So(top[0].Identity, ShouldEqual, "an")
			})
		})

		Convey("When a submission is filed in a long Vietnamese collection", func() {
			rec, err := svc.CreateSubmission(ctx, name, submission.NewSubmission{GroupLabel: "11A"})
			So(err, ShouldBeNil)
			_, err = svc.AddComment(ctx, name, rec.ID, "cô Lan", "tốt", 9)
			So(err, ShouldBeNil)

			Convey("Then it reads back with its comment", func() {
				got, err := svc.GetSubmission(ctx, name, rec.ID)
				So(err, ShouldBeNil)
				So(len(got.Comments), ShouldEqual, 1)
			})
		})
	})
}

func TestServiceIntegration_Persistence(t *testing.T) {
	Convey("Given a service over the file driver", t, func() {
		dir := t.TempDir()
		cfg := memoryConfig()
		cfg.StorageDriver = config.DriverFile
		cfg.DataDir = dir
		ctx := context.Background()

		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)

		_, err := svc.SubmitScore(ctx, "bai_1", "alice", 12.5)
		So(err, ShouldBeNil)
		rec, err := svc.CreateSubmission(ctx, "math", submission.NewSubmission{GroupLabel: "g1", Filename: "a.txt"})
		So(err, ShouldBeNil)
		_, err = svc.AddComment(ctx, "math", rec.ID, "mentor", "solid", 9)
		So(err, ShouldBeNil)
		svc.Stop()

		Convey("When a new service opens the same directory", func() {
			again := service.New(service.WithConfig(cfg))
			So(again.Start(ctx), ShouldBeNil)
			defer again.Stop()

			Convey("Then every committed record is still there", func() {
				top, err := again.TopScores(ctx, "bai_1")
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 1)
				So(top[0].Score, ShouldEqual, 12.5)

				got, err := again.GetSubmission(ctx, "math", rec.ID)
				So(err, ShouldBeNil)
				So(*got.AverageScore, ShouldEqual, 9.0)
			})
		})

		Convey("When a document is corrupted on disk", func() {
			path := filepath.Join(dir, "leaderboard", "bai_1.json")
			So(os.WriteFile(path, []byte("{not json"), 0o600), ShouldBeNil)

			again := service.New(service.WithConfig(cfg))
			So(again.Start(ctx), ShouldBeNil)
			defer again.Stop()

			Convey("Then it reads as empty and is counted", func() {
				top, err := again.TopScores(ctx, "bai_1")
				So(err, ShouldBeNil)
				So(top, ShouldBeEmpty)
				So(again.GetStats()["corruptDocuments"], ShouldEqual, int64(1))

				_, err = again.SubmitScore(ctx, "bai_1", "bob", 1)
				So(err, ShouldBeNil)
				top, err = again.TopScores(ctx, "bai_1")
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 1)
			})
		})
	})
}

func TestServiceIntegration_Concurrency(t *testing.T) {
	Convey("Given a service over the file driver", t, func() {
		cfg := memoryConfig()
		cfg.StorageDriver = config.DriverFile
		cfg.DataDir = t.TempDir()
		svc := service.New(service.WithConfig(cfg))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When many identities submit at once", func() {
			var g errgroup.Group
			for i := 0; i < 80; i++ {
				i := i
				g.Go(func() error {
					_, err := svc.SubmitScore(ctx, "bai_1", fmt.Sprintf("id-%02d", i), float64(i))
					return err
				})
			}
			So(g.Wait(), ShouldBeNil)

			Convey("Then the best retained scores survive with no lost update", func() {
				top, err := svc.TopN(ctx, "bai_1", 100)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, cfg.LeaderboardRetention)
				So(top[0].Identity, ShouldEqual, "id-79")
				So(top[len(top)-1].Score, ShouldEqual, 30)
			})
		})

		Convey("When many raters comment on one submission at once", func() {
			rec, err := svc.CreateSubmission(ctx, "general", submission.NewSubmission{GroupLabel: "g"})
			So(err, ShouldBeNil)
			var g errgroup.Group
			for i := 0; i < 40; i++ {
				i := i
				g.Go(func() error {
					_, err := svc.AddComment(ctx, "general", rec.ID, fmt.Sprintf("r%d", i), "ok", float64(i%2)*10)
					return err
				})
			}
			So(g.Wait(), ShouldBeNil)

			Convey("Then every comment is kept", func() {
				got, err := svc.GetSubmission(ctx, "general", rec.ID)
				So(err, ShouldBeNil)
				So(len(got.Comments), ShouldEqual, 40)
				So(*got.AverageScore, ShouldEqual, 5.0)
			})
		})
	})
}

func TestServiceIntegration_Reviews(t *testing.T) {
	Convey("Given a service with a scripted reviewer", t, func() {
		ctx := context.Background()

		Convey("When an upload is reviewed", func() {
			svc := newStartedService(service.WithReviewer(&fixedReviewer{scoreText: "Score: 8.5/10"}))
			defer svc.Stop()
			jobID, err := svc.EnqueueReview(ctx, service.ReviewRequest{GroupLabel: "team-a", Filename: "essay.txt", Content: []byte("text")})
			So(err, ShouldBeNil)
			st := waitForReview(svc, jobID)

			Convey("Then a scored submission is filed in the default collection", func() {
				So(st.State, ShouldEqual, service.ReviewDone)
				So(st.Collection, ShouldEqual, "general")
				rec, err := svc.GetSubmission(ctx, "general", st.SubmissionID)
				So(err, ShouldBeNil)
				So(*rec.AverageScore, ShouldEqual, 8.5)
				So(rec.ScoreSources, ShouldResemble, []string{model.MachineRater})
				So(rec.MachineFeedback, ShouldEqual, "reviewed essay.txt")
			})
		})

		Convey("When the reviewer fails", func() {
			svc := newStartedService(service.WithReviewer(&fixedReviewer{err: errors.New("model offline")}))
			defer svc.Stop()
			jobID, err := svc.EnqueueReview(ctx, service.ReviewRequest{Filename: "essay.txt"})
			So(err, ShouldBeNil)
			st := waitForReview(svc, jobID)

			Convey("Then the job reports the failure", func() {
				So(st.State, ShouldEqual, service.ReviewFailed)
				So(st.Error, ShouldContainSubstring, "model offline")
			})
		})

		Convey("When the queue is full", func() {
			cfg := memoryConfig()
			cfg.ReviewQueueSize = 1
			cfg.ReviewWorkers = 1
			block := make(chan struct{})
			svc := service.New(service.WithConfig(cfg), service.WithReviewer(&fixedReviewer{scoreText: "5", block: block}))
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()
			defer close(block)

			var lastErr error
			for i := 0; i < 5 && lastErr == nil; i++ {
				_, lastErr = svc.EnqueueReview(ctx, service.ReviewRequest{Filename: fmt.Sprintf("f%d", i)})
			}

			Convey("Then enqueue reports backpressure", func() {
				So(errors.Is(lastErr, queue.ErrFull), ShouldBeTrue)
			})
		})

		Convey("When a request has nothing to review", func() {
			svc := newStartedService()
			defer svc.Stop()
			_, err := svc.EnqueueReview(ctx, service.ReviewRequest{})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When an unknown job is polled", func() {
			svc := newStartedService()
			defer svc.Stop()
			_, err := svc.ReviewStatus(ctx, "nope")

			Convey("Then it is not found", func() {
				So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
