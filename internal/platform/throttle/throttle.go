// Package throttle bounds the number of concurrent calls to the role record
// store. Every store call in the process goes through one Throttler instance
// so the backing service never sees more than the configured ceiling.
package throttle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	dErrors "rolesync/pkg/domain-errors"
)

const (
	DefaultMaxConcurrent = 3
	DefaultQueueTimeout  = 10 * time.Second
)

// Throttler admits at most maxConcurrent callers at a time. Callers that
// cannot acquire a slot within the queue timeout fail with CodeQueueTimeout.
type Throttler struct {
	sem           *semaphore.Weighted
	maxConcurrent int64
	queueTimeout  time.Duration
	limiter       *rate.Limiter
	inFlight      atomic.Int64
	logger        *slog.Logger
	metrics       *Metrics
}

type Option func(*Throttler)

func WithMaxConcurrent(n int) Option {
	return func(t *Throttler) {
		if n > 0 {
			t.maxConcurrent = int64(n)
		}
	}
}

func WithQueueTimeout(d time.Duration) Option {
	return func(t *Throttler) {
		if d > 0 {
			t.queueTimeout = d
		}
	}
}

// WithRateLimit paces admissions to perSecond with the given burst. Zero
// disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(t *Throttler) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Throttler) {
		t.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Throttler) {
		t.metrics = m
	}
}

func New(opts ...Option) *Throttler {
	t := &Throttler{
		maxConcurrent: DefaultMaxConcurrent,
		queueTimeout:  DefaultQueueTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.sem = semaphore.NewWeighted(t.maxConcurrent)
	return t
}

// Execute runs fn once a slot is available. Errors returned by fn are passed
// through unchanged.
func (t *Throttler) Execute(ctx context.Context, fn func(context.Context) error) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Do is Execute for functions that return a value.
func Do[T any](ctx context.Context, t *Throttler, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := t.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// InFlight reports how many callers currently hold a slot.
func (t *Throttler) InFlight() int {
	return int(t.inFlight.Load())
}

func (t *Throttler) MaxConcurrent() int {
	return int(t.maxConcurrent)
}

func (t *Throttler) acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, t.queueTimeout)
	defer cancel()

	if t.limiter != nil {
		if err := t.limiter.Wait(waitCtx); err != nil {
			return nil, t.admissionError(ctx, err)
		}
	}
	if err := t.sem.Acquire(waitCtx, 1); err != nil {
		return nil, t.admissionError(ctx, err)
	}

	n := t.inFlight.Add(1)
	if t.metrics != nil {
		t.metrics.ObserveQueueWait(start)
		t.metrics.SetInFlight(n)
	}
	return func() {
		n := t.inFlight.Add(-1)
		t.sem.Release(1)
		if t.metrics != nil {
			t.metrics.SetInFlight(n)
		}
	}, nil
}

// admissionError separates the caller giving up from the queue timing out.
func (t *Throttler) admissionError(parent context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if t.metrics != nil {
		t.metrics.IncrementQueueTimeout()
	}
	if t.logger != nil {
		t.logger.Warn("store call queue timeout",
			"queue_timeout", t.queueTimeout,
			"in_flight", t.inFlight.Load(),
			"max_concurrent", t.maxConcurrent,
		)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.New(dErrors.CodeQueueTimeout, "service is busy, please try again")
	}
	// rate.Limiter reports a wait that would exceed the deadline as a plain error.
	return dErrors.Wrap(err, dErrors.CodeQueueTimeout, "service is busy, please try again")
}
