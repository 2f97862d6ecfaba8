package model

import "time"

// ReviewJob asks the reviewer to grade an upload and file the result as a
// submission in Collection.
type ReviewJob struct {
	JobID      string
	Collection string
	GroupLabel string
	Filename   string
	FileType   string
	Note       string
	Content    []byte
	EnqueuedAt time.Time
}
