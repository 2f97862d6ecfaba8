package service

import (
	"fmt"

	"github.com/okian/scorekeep/internal/domain/errs"
)

// ErrNotStarted is returned by operations called before Start or after Stop.
var ErrNotStarted = fmt.Errorf("service not started: %w", errs.ErrUnavailable)
