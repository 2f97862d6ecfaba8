package api

import (
	"errors"
	"net/http"

	"github.com/okian/scorekeep/internal/adapters/mq/queue"
	"github.com/okian/scorekeep/internal/domain/errs"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrInFlight     = errors.New("request with this idempotency key is still in progress")
)

// statusFor maps a failure to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrInFlight):
		return http.StatusConflict, "in_progress"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, queue.ErrFull), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, errs.ErrStorage):
		return http.StatusServiceUnavailable, "storage_failure"
	case errors.Is(err, errs.ErrCancelled):
		return http.StatusServiceUnavailable, "cancelled"
	case errors.Is(err, errs.ErrUnavailable), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
