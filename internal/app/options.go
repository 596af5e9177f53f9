package app

import (
	"time"

	"github.com/okian/vigil/internal/adapters/inference"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/domain/signal"
	"github.com/okian/vigil/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the session store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithObserver sets the inference observer.
func WithObserver(observer inference.Observer) Option {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithDetector sets the signal rule engine.
func WithDetector(detector *signal.Detector) Option {
	return func(s *Service) {
		if detector != nil {
			s.detector = detector
		}
	}
}

// WithSampleInterval sets the minimum interval between accepted frames.
func WithSampleInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.sampleInterval = interval
		}
	}
}

// WithRetryLimit bounds retries after an optimistic-write conflict.
func WithRetryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.retryLimit = limit
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

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
