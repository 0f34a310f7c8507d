// Package service implements the role lifecycle: creating, verifying,
// activating and removing the roles of an account.
//
// The role store offers no multi-row transactions. Every store call goes
// through the shared throttler with a timeout scaled to its weight, and
// invariants that span rows are kept by ordered writes that resolution
// repairs when a sequence is interrupted.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rolesync/internal/platform/throttle"
	"rolesync/internal/roles/metrics"
	"rolesync/internal/roles/models"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/notify"
	"rolesync/pkg/platform/sentinel"
	"rolesync/pkg/requestcontext"
)

// RoleStore is the record store contract. Implementations report store facts
// with sentinel errors.
type RoleStore interface {
	Insert(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, filter models.Filter, patch models.Patch) (int, error)
	Delete(ctx context.Context, filter models.Filter) (int, error)
	Select(ctx context.Context, filter models.Filter) ([]*models.Role, error)
}

// Notifier receives fire-and-forget notifications.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event) error
}

type Config struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BulkTimeout  time.Duration
	TokenTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		BaseBackoff:  time.Second,
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 10 * time.Second,
		BulkTimeout:  15 * time.Second,
		TokenTTL:     24 * time.Hour,
	}
}

type Service struct {
	store     RoleStore
	throttler *throttle.Throttler
	notifier  Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cfg       Config
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithConfig overrides the defaults. Zero fields keep their default.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.MaxAttempts > 0 {
			s.cfg.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.BaseBackoff > 0 {
			s.cfg.BaseBackoff = cfg.BaseBackoff
		}
		if cfg.ReadTimeout > 0 {
			s.cfg.ReadTimeout = cfg.ReadTimeout
		}
		if cfg.WriteTimeout > 0 {
			s.cfg.WriteTimeout = cfg.WriteTimeout
		}
		if cfg.BulkTimeout > 0 {
			s.cfg.BulkTimeout = cfg.BulkTimeout
		}
		if cfg.TokenTTL > 0 {
			s.cfg.TokenTTL = cfg.TokenTTL
		}
	}
}

// New constructs a Service. A nil throttler gets a private one with default
// limits; production wiring passes the process-wide instance.
func New(store RoleStore, throttler *throttle.Throttler, opts ...Option) *Service {
	if throttler == nil {
		throttler = throttle.New()
	}
	s := &Service{
		store:     store,
		throttler: throttler,
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type weight int

const (
	weightRead weight = iota
	weightWrite
	weightBulk
)

func (s *Service) timeoutFor(w weight) time.Duration {
	switch w {
	case weightWrite:
		return s.cfg.WriteTimeout
	case weightBulk:
		return s.cfg.BulkTimeout
	default:
		return s.cfg.ReadTimeout
	}
}

// storeCall runs fn under the throttler and a per-call timeout and converts
// store facts into coded errors.
func storeCall[T any](ctx context.Context, s *Service, w weight, op string, fn func(context.Context) (T, error)) (T, error) {
	timeout := s.timeoutFor(w)
	return throttle.Do(ctx, s.throttler, func(ctx context.Context) (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		out, err := fn(callCtx)
		if err != nil {
			return out, translate(ctx, op, err)
		}
		return out, nil
	})
}

func translate(parent context.Context, op string, err error) error {
	var coded *dErrors.Error
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case errors.As(err, &coded):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, op+" timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeTransient, op+" failed, store unavailable")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "role not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "role already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op)
	}
}

// retry runs fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is reached. The wait before attempt n is (n-1) x BaseBackoff.
func (s *Service) retry(ctx context.Context, op string, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if s.metrics != nil {
				s.metrics.IncrementStoreRetry()
			}
			s.logger.WarnContext(ctx, "retrying store call",
				"operation", op,
				"attempt", attempt,
				"error", err,
			)
			if waitErr := sleep(ctx, time.Duration(attempt-1)*s.cfg.BaseBackoff); waitErr != nil {
				return waitErr
			}
		}
		err = fn(attempt)
		if err == nil || !dErrors.IsRetryable(err) {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) selectRoles(ctx context.Context, filter models.Filter) ([]*models.Role, error) {
	return storeCall(ctx, s, weightRead, "select roles", func(ctx context.Context) ([]*models.Role, error) {
		return s.store.Select(ctx, filter)
	})
}

func (s *Service) updateRoles(ctx context.Context, w weight, op string, filter models.Filter, patch models.Patch) (int, error) {
	return storeCall(ctx, s, w, op, func(ctx context.Context) (int, error) {
		return s.store.Update(ctx, filter, patch)
	})
}

func (s *Service) deleteRoles(ctx context.Context, w weight, op string, filter models.Filter) (int, error) {
	return storeCall(ctx, s, w, op, func(ctx context.Context) (int, error) {
		return s.store.Delete(ctx, filter)
	})
}

// emit delivers a notification. Failures are logged and never returned.
func (s *Service) emit(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			"type", event.Type,
			"account_id", event.AccountID,
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}
