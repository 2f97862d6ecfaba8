// Package model contains domain models persisted by the stores and passed
// between layers.
package model

import "time"

// ScoreEntry is one identity's best score within a category.
type ScoreEntry struct {
	Identity   string    `json:"identity"`
	Category   string    `json:"category"`
	Score      float64   `json:"score"`
	RecordedAt time.Time `json:"recordedAt"`
}

// LeaderboardDocument is the persisted form of one category. Entries are
// kept ranked and bounded by the retention limit.
type LeaderboardDocument struct {
	Category string       `json:"category"`
	Entries  []ScoreEntry `json:"entries"`
}

// Find returns the index of identity's entry, or -1.
func (d *LeaderboardDocument) Find(identity string) int {
	for i := range d.Entries {
		if d.Entries[i].Identity == identity {
			return i
		}
	}
	return -1
}
