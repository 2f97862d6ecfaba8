package loadcheck

import "time"

// Config holds configuration for a load check run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Category   string        // Leaderboard category to fill; a unique one is generated when empty
	Collection string        // Collection holding the commented submission
	Identities int           // Number of distinct identities submitting scores
	Comments   int           // Number of concurrent comments on one submission
	Retention  int           // Expected leaderboard retention bound
	Workers    int           // Number of concurrent HTTP workers
	Timeout    time.Duration // HTTP request timeout
	Verbose    bool          // Enable verbose logging
}

// Entry mirrors a leaderboard row.
type Entry struct {
	Rank     int     `json:"rank"`
	Identity string  `json:"identity"`
	Score    float64 `json:"score"`
}

// Record mirrors the parts of a submission record the check reads.
type Record struct {
	ID           string    `json:"id"`
	Comments     []Comment `json:"comments"`
	AverageScore *float64  `json:"averageScore"`
}

// Comment mirrors a submission comment.
type Comment struct {
	Rater string  `json:"rater"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Stats holds run statistics.
type Stats struct {
	ScoresSubmitted   int
	ScoresFailed      int
	CommentsSubmitted int
	CommentsFailed    int
	StartTime         time.Time
	Duration          time.Duration
}
