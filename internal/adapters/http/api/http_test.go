package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/scorekeep/internal/adapters/http/api"
	"github.com/okian/scorekeep/internal/adapters/mq/queue"
	service "github.com/okian/scorekeep/internal/app"
	"github.com/okian/scorekeep/internal/config"
	"github.com/okian/scorekeep/internal/domain/dedupe"
	"github.com/okian/scorekeep/internal/domain/errs"
	"github.com/okian/scorekeep/internal/domain/leaderboard"
	"github.com/okian/scorekeep/internal/domain/model"
	"github.com/okian/scorekeep/internal/domain/submission"
	"github.com/okian/scorekeep/internal/domain/types"
	"github.com/okian/scorekeep/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// failingDeps returns err from every operation.
type failingDeps struct {
	err  error
	seen map[string]bool
}

func (f *failingDeps) SeenAndRecord(_ context.Context, id string) bool {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[id] {
		return true
	}
	f.seen[id] = true
	return false
}
func (f *failingDeps) Unrecord(_ context.Context, id string) { delete(f.seen, id) }
func (f *failingDeps) Size() int64                           { return int64(len(f.seen)) }

func (f *failingDeps) SubmitScore(context.Context, string, string, float64) (leaderboard.SubmitResult, error) {
	return leaderboard.SubmitResult{}, f.err
}
func (f *failingDeps) TopScores(context.Context, string) ([]types.RankedEntry, error) {
	return nil, f.err
}
func (f *failingDeps) TopN(context.Context, string, int) ([]types.RankedEntry, error) {
	return nil, f.err
}
func (f *failingDeps) Rank(context.Context, string, string) (types.RankedEntry, error) {
	return types.RankedEntry{}, f.err
}
func (f *failingDeps) ResetCategory(context.Context, string) (bool, error) { return false, f.err }
func (f *failingDeps) CreateSubmission(context.Context, string, submission.NewSubmission) (model.SubmissionRecord, error) {
	return model.SubmissionRecord{}, f.err
}
func (f *failingDeps) AddComment(context.Context, string, string, string, string, float64) (submission.CommentResult, error) {
	return submission.CommentResult{}, f.err
}
func (f *failingDeps) ListSubmissions(context.Context, string) ([]model.SubmissionRecord, error) {
	return nil, f.err
}
func (f *failingDeps) GetSubmission(context.Context, string, string) (model.SubmissionRecord, error) {
	return model.SubmissionRecord{}, f.err
}
func (f *failingDeps) EnqueueReview(context.Context, types.ReviewRequest) (string, error) {
	return "", f.err
}
func (f *failingDeps) ReviewStatus(context.Context, string) (types.ReviewStatus, error) {
	return types.ReviewStatus{}, f.err
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, opts...).Register(mux)
	return mux
}

func newServiceMux() (*http.ServeMux, *service.Service) {
	cfg := config.New()
	cfg.StorageDriver = config.DriverMemory
	cfg.ReviewLatencyMinMS = 1
	cfg.ReviewLatencyMaxMS = 2
	svc := service.New(service.WithConfig(cfg))
	So(svc.Start(context.Background()), ShouldBeNil)
	mux := http.NewServeMux()
	api.NewServer(svc, svc, api.WithMaxLimit(cfg.MaxLeaderboardLimit)).Register(mux)
	return mux, svc
}

func do(mux http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&failingDeps{})

		Convey("Then the health endpoint serves metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And the stats endpoint serves JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(decode[map[string]any](w)["started"], ShouldEqual, true)
		})

		Convey("And wrong methods are rejected", func() {
			w := do(mux, http.MethodPut, "/scores", "{}")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestScoresAndLeaderboard(t *testing.T) {
	Convey("Given an API over a running service", t, func() {
		mux, svc := newServiceMux()
		defer svc.Stop()

		Convey("When scores are posted", func() {
			for _, body := range []string{
				`{"category":"bai_1","identity":"alice","score":10}`,
				`{"category":"bai_1","identity":"bob","score":30}`,
				`{"category":"bai_1","identity":"alice","score":40}`,
			} {
				So(do(mux, http.MethodPost, "/scores", body).Code, ShouldEqual, http.StatusOK)
			}

			Convey("Then the leaderboard is ranked best first", func() {
				w := do(mux, http.MethodGet, "/leaderboard/bai_1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				entries := decode[[]types.RankedEntry](w)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].Identity, ShouldEqual, "alice")
				So(entries[0].Score, ShouldEqual, 40)
			})

			Convey("And a lower score reports no update", func() {
				w := do(mux, http.MethodPost, "/scores", `{"category":"bai_1","identity":"bob","score":1}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				res := decode[map[string]any](w)
				So(res["updated"], ShouldEqual, false)
				So(res["outcome"], ShouldEqual, "unchanged")
			})

			Convey("And rank reports the position", func() {
				w := do(mux, http.MethodGet, "/rank/bai_1/bob", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.RankedEntry](w).Rank, ShouldEqual, 2)

				So(do(mux, http.MethodGet, "/rank/bai_1/nobody", "").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And a reset clears the category", func() {
				w := do(mux, http.MethodDelete, "/leaderboard/bai_1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]bool](w)["reset"], ShouldBeTrue)
				So(decode[[]types.RankedEntry](do(mux, http.MethodGet, "/leaderboard/bai_1?limit=10", "")), ShouldBeEmpty)
			})
		})

		Convey("When the limit is invalid", func() {
			Convey("Then non-numeric and oversized limits are rejected", func() {
				So(do(mux, http.MethodGet, "/leaderboard/bai_1?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodGet, "/leaderboard/bai_1?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodGet, "/leaderboard/bai_1?limit=51", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the score request is malformed", func() {
			Convey("Then it is a bad request", func() {
				So(do(mux, http.MethodPost, "/scores", `{"category":"bai_1","identity":"a"}`).Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodPost, "/scores", `{"category":"bai_1","identity":"a","score":-1}`).Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodPost, "/scores", `not json`).Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodPost, "/scores", `{"category":"bai_1","identity":"a","score":1,"extra":true}`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestSubmissionsAndComments(t *testing.T) {
	Convey("Given an API over a running service", t, func() {
		mux, svc := newServiceMux()
		defer svc.Stop()

		w := do(mux, http.MethodPost, "/collections/math/submissions", `{"groupLabel":"team-a","filename":"a.txt","initialScore":8}`)
		So(w.Code, ShouldEqual, http.StatusCreated)
		rec := decode[model.SubmissionRecord](w)
		So(rec.ID, ShouldNotBeEmpty)
		commentsPath := fmt.Sprintf("/collections/math/submissions/%s/comments", rec.ID)

		Convey("When a comment is added", func() {
			w := do(mux, http.MethodPost, commentsPath, `{"rater":"t1","text":"nice","score":6}`)

			Convey("Then the average includes the machine score", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				res := decode[map[string]any](w)
				So(res["added"], ShouldEqual, true)
				So(res["averageScore"], ShouldEqual, 7.0)
			})

			Convey("And the same comment again is a duplicate", func() {
				w := do(mux, http.MethodPost, commentsPath, `{"rater":"t1","text":"nice","score":6}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](w)["duplicate"], ShouldEqual, true)
			})

			Convey("And the record lists it", func() {
				w := do(mux, http.MethodGet, "/collections/math/submissions", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				recs := decode[[]model.SubmissionRecord](w)
				So(len(recs), ShouldEqual, 1)
				So(len(recs[0].Comments), ShouldEqual, 1)

				w = do(mux, http.MethodGet, "/collections/math/submissions/"+rec.ID, "")
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When commenting on an unknown submission", func() {
			w := do(mux, http.MethodPost, "/collections/math/submissions/nope/comments", `{"rater":"t","text":"x","score":1}`)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode[map[string]string](w)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When the comment score is out of range", func() {
			w := do(mux, http.MethodPost, commentsPath, `{"rater":"t","text":"x","score":11}`)

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an unknown collection is listed", func() {
			w := do(mux, http.MethodGet, "/collections/empty/submissions", "")

			Convey("Then it is empty", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[[]model.SubmissionRecord](w), ShouldBeEmpty)
			})
		})
	})
}

func TestReviews(t *testing.T) {
	Convey("Given an API over a running service", t, func() {
		mux, svc := newServiceMux()
		defer svc.Stop()

		Convey("When a review is posted", func() {
			body, _ := json.Marshal(types.ReviewRequest{Collection: "essays", Filename: "e.txt", Content: []byte("essay")})
			req := httptest.NewRequest(http.MethodPost, "/reviews", bytes.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			jobID := decode[map[string]string](w)["jobId"]
			So(jobID, ShouldNotBeEmpty)

			Convey("Then the job eventually files a scored submission", func() {
				var st types.ReviewStatus
				for i := 0; i < 500; i++ {
					w := do(mux, http.MethodGet, "/reviews/"+jobID, "")
					So(w.Code, ShouldEqual, http.StatusOK)
					st = decode[types.ReviewStatus](w)
					if st.State != types.ReviewPending {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(st.State, ShouldEqual, types.ReviewDone)

				w := do(mux, http.MethodGet, "/collections/essays/submissions/"+st.SubmissionID, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				rec := decode[model.SubmissionRecord](w)
				So(rec.AverageScore, ShouldNotBeNil)
				So(rec.ScoreSources, ShouldResemble, []string{model.MachineRater})
			})
		})

		Convey("When an unknown job is polled", func() {
			So(do(mux, http.MethodGet, "/reviews/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestIdempotencyKey(t *testing.T) {
	Convey("Given an API over a running service", t, func() {
		mux, svc := newServiceMux()
		defer svc.Stop()
		ctx := context.Background()
		rec, err := svc.CreateSubmission(ctx, "math", submission.NewSubmission{GroupLabel: "g"})
		So(err, ShouldBeNil)
		path := "/collections/math/submissions/" + rec.ID + "/comments"

		Convey("When a mutation is replayed with the same key", func() {
			w1 := do(mux, http.MethodPost, path, `{"rater":"a","text":"one","score":4}`, "Idempotency-Key", "k1")
			w2 := do(mux, http.MethodPost, path, `{"rater":"a","text":"two","score":4}`, "Idempotency-Key", "k1")

			Convey("Then it is applied once", func() {
				So(w1.Code, ShouldEqual, http.StatusCreated)
				So(w2.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](w2)["status"], ShouldEqual, "duplicate")
				got, err := svc.GetSubmission(ctx, "math", rec.ID)
				So(err, ShouldBeNil)
				So(len(got.Comments), ShouldEqual, 1)
			})
		})

		Convey("When a keyed mutation fails", func() {
			w1 := do(mux, http.MethodPost, path, `{"rater":"a","text":"one","score":40}`, "Idempotency-Key", "k2")
			w2 := do(mux, http.MethodPost, path, `{"rater":"a","text":"one","score":4}`, "Idempotency-Key", "k2")

			Convey("Then the key can be retried", func() {
				So(w1.Code, ShouldEqual, http.StatusBadRequest)
				So(w2.Code, ShouldEqual, http.StatusCreated)
			})
		})
	})
}

func TestIdempotencyKeyInFlight(t *testing.T) {
	Convey("Given a keyed mutation that is still running", t, func() {
		entered := make(chan struct{})
		release := make(chan struct{})
		status := http.StatusServiceUnavailable
		calls := 0
		handler := func(w http.ResponseWriter, _ *http.Request) {
			calls++
			if calls == 1 {
				close(entered)
				<-release
			}
			w.WriteHeader(status)
		}
		guard := api.NewIdempotencyGuard(dedupe.NewWindow())
		mux := http.NewServeMux()
		mux.HandleFunc("POST /scores", guard.Wrap(handler))

		first := make(chan *httptest.ResponseRecorder, 1)
		go func() {
			first <- do(mux, http.MethodPost, "/scores", `{}`, "Idempotency-Key", "k1")
		}()
		<-entered

		Convey("When the same key is replayed before the first attempt fails", func() {
			replay := do(mux, http.MethodPost, "/scores", `{}`, "Idempotency-Key", "k1")
			close(release)
			w1 := <-first

			Convey("Then the replay is refused rather than acknowledged", func() {
				So(w1.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(replay.Code, ShouldEqual, http.StatusConflict)
				So(decode[map[string]string](replay)["code"], ShouldEqual, "in_progress")
			})

			Convey("Then a later retry runs the mutation and only then counts as done", func() {
				status = http.StatusCreated
				retry := do(mux, http.MethodPost, "/scores", `{}`, "Idempotency-Key", "k1")
				again := do(mux, http.MethodPost, "/scores", `{}`, "Idempotency-Key", "k1")
				So(retry.Code, ShouldEqual, http.StatusCreated)
				So(again.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](again)["duplicate"], ShouldEqual, true)
				So(calls, ShouldEqual, 2)
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", errs.Newf("op", errs.ErrValidation, "bad"), http.StatusBadRequest, "bad_request"},
		{"not found", errs.New("op", errs.ErrNotFound), http.StatusNotFound, "not_found"},
		{"storage", errs.WrapKind("op", errs.ErrStorage, errors.New("disk full")), http.StatusServiceUnavailable, "storage_failure"},
		{"cancelled", errs.New("op", errs.ErrCancelled), http.StatusServiceUnavailable, "cancelled"},
		{"not started", service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
		{"queue full", errs.Wrap("op", queue.ErrFull), http.StatusTooManyRequests, "backpressure"},
		{"in flight", api.ErrInFlight, http.StatusConflict, "in_progress"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	Convey("Given dependencies that fail", t, func() {
		for _, tc := range cases {
			Convey("When the failure is "+tc.name, func() {
				mux := newMux(&failingDeps{err: tc.err})
				w := do(mux, http.MethodPost, "/scores", `{"category":"c","identity":"i","score":1}`)

				Convey("Then the status and code match", func() {
					So(w.Code, ShouldEqual, tc.status)
					So(decode[map[string]string](w)["code"], ShouldEqual, tc.code)
				})
			})
		}
	})
}
