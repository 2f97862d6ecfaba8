package loadcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/okian/scorekeep/internal/domain/scoring"
)

// verifyLeaderboard checks that the category holds the best min(sent,
// retention) scores, best first, with no duplicate identities.
func verifyLeaderboard(ctx context.Context, cfg *Config, client *httpClient, sent map[string]float64) error {
	var got []Entry
	path := "/leaderboard/" + url.PathEscape(cfg.Category) + "?limit=" + strconv.Itoa(cfg.Retention)
	if _, err := client.do(ctx, http.MethodGet, path, nil, &got); err != nil {
		return err
	}
	return checkLeaderboard(got, sent, cfg.Retention)
}

func checkLeaderboard(got []Entry, sent map[string]float64, retention int) error {
	want := min(len(sent), retention)
	if len(got) != want {
		return fmt.Errorf("expected %d entries, got %d", want, len(got))
	}

	seen := make(map[string]bool, len(got))
	for i, e := range got {
		if seen[e.Identity] {
			return fmt.Errorf("identity %s listed twice", e.Identity)
		}
		seen[e.Identity] = true
		if s, ok := sent[e.Identity]; !ok || s != e.Score {
			return fmt.Errorf("entry %d: %s has score %v, sent %v", i, e.Identity, e.Score, s)
		}
		if i > 0 && e.Score > got[i-1].Score {
			return fmt.Errorf("entry %d scores higher than entry %d", i, i-1)
		}
	}

	scores := make([]float64, 0, len(sent))
	for _, s := range sent {
		scores = append(scores, s)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	for i := range got {
		if got[i].Score != scores[i] {
			return fmt.Errorf("entry %d: expected score %v, got %v", i, scores[i], got[i].Score)
		}
	}
	return nil
}

// verifySubmission checks that every comment landed and the average matches.
func verifySubmission(ctx context.Context, cfg *Config, client *httpClient, id string, scores []float64) error {
	var rec Record
	path := "/collections/" + url.PathEscape(cfg.Collection) + "/submissions/" + url.PathEscape(id)
	if _, err := client.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return err
	}
	return checkSubmission(rec, scores)
}

func checkSubmission(rec Record, scores []float64) error {
	if len(rec.Comments) != len(scores) {
		return fmt.Errorf("expected %d comments, got %d (lost updates)", len(scores), len(rec.Comments))
	}
	want := scoring.Average(scores)
	switch {
	case want == nil && rec.AverageScore == nil:
		return nil
	case want == nil || rec.AverageScore == nil:
		return fmt.Errorf("average mismatch: expected %v, got %v", want, rec.AverageScore)
	case *want != *rec.AverageScore:
		return fmt.Errorf("average mismatch: expected %v, got %v", *want, *rec.AverageScore)
	}
	return nil
}
