package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("review queue full")
	ErrClosed = errors.New("review queue closed")
)
