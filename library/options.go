package library

import (
	"errors"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/shared/config"
	"github.com/AntonStoeckl/library-lending-go/library/shared/shell"
)

var (
	// ErrNilClock is returned by WithClock(nil).
	ErrNilClock = errors.New("clock must not be nil")

	// ErrInvalidLoanPeriod is returned for a default loan period that is not positive.
	ErrInvalidLoanPeriod = errors.New("default loan period must be positive")
)

// Option configures a Service.
type Option func(*Service) error

// WithClock replaces time.Now, tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return ErrNilClock
		}

		s.now = now

		return nil
	}
}

// WithServiceConfig applies the retry, delivery and loan settings.
// Retry option values are validated on the first command.
func WithServiceConfig(cfg config.ServiceConfig) Option {
	return func(s *Service) error {
		if cfg.DefaultLoanPeriod <= 0 {
			return ErrInvalidLoanPeriod
		}

		s.cfg = cfg
		s.retryOptions = []shell.RetryOption{
			shell.WithBaseDelay(cfg.RetryBaseDelay),
			shell.WithJitterFactor(cfg.RetryJitterFactor),
		}

		// zero keeps the retry default
		if cfg.RetryMaxAttempts != 0 {
			s.retryOptions = append(s.retryOptions, shell.WithMaxAttempts(cfg.RetryMaxAttempts))
		}

		return nil
	}
}

// WithLogger sets a basic logger for the handlers and the dispatcher.
func WithLogger(logger lending.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(s *Service) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the handlers and the dispatcher.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(s *Service) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the handlers.
func WithTracing(collector lending.TracingCollector) Option {
	return func(s *Service) error {
		s.tracingCollector = collector
		return nil
	}
}
