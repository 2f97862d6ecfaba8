package service

import (
	"github.com/okian/scorekeep/internal/adapters/repository"
	"github.com/okian/scorekeep/internal/config"
	"github.com/okian/scorekeep/internal/domain/scoring"
	"github.com/okian/scorekeep/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore injects the document store instead of opening the configured
// driver. The service takes ownership and closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithReviewer replaces the simulated reviewer.
func WithReviewer(r scoring.Reviewer) Option {
	return func(s *Service) {
		if r != nil {
			s.reviewer = r
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
