package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrInvalidKey    = errors.New("invalid document key")
	ErrClosed        = errors.New("store closed")
	ErrUnknownDriver = errors.New("unknown storage driver")
)
