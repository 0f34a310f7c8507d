package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"rolesync/pkg/platform/circuit"
	"rolesync/pkg/requestcontext"
)

// Sink delivers a batch of events to an external channel.
type Sink interface {
	Deliver(ctx context.Context, events []Event) error
}

// DurableStore persists events that must not be lost.
type DurableStore interface {
	Append(ctx context.Context, event Event) error
}

// Publisher fans events out to a sink. In async mode events are queued in a
// ring buffer and flushed by a background worker; Close drains the queue.
// Durable events are written to the durable store synchronously and the
// write error is returned to the caller.
type Publisher struct {
	sink    Sink
	durable DurableStore
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics

	buffer        *RingBuffer
	batchSize     int
	flushInterval time.Duration
	deliverTO     time.Duration
	probeInterval time.Duration
	lastProbe     atomic.Int64

	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables async delivery with a ring buffer of capacity n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(n)
	}
}

func WithDurableStore(store DurableStore) Option {
	return func(p *Publisher) {
		p.durable = store
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// WithProbeInterval sets how often an open breaker lets a delivery through.
func WithProbeInterval(d time.Duration) Option {
	return func(p *Publisher) {
		p.probeInterval = d
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:          sink,
		breaker:       circuit.New("notify-sink"),
		logger:        slog.Default(),
		batchSize:     100,
		flushInterval: 250 * time.Millisecond,
		deliverTO:     5 * time.Second,
		probeInterval: 30 * time.Second,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit stamps and dispatches an event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if p.metrics != nil {
		p.metrics.IncrementEmitted(event.Type)
	}

	if event.Type.Durable() && p.durable != nil {
		if err := p.durable.Append(ctx, event); err != nil {
			return err
		}
	}

	if p.buffer == nil {
		return p.deliver(ctx, []Event{event})
	}
	if p.buffer.Enqueue(event) && p.metrics != nil {
		p.metrics.AddDropped(1)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the worker and delivers anything still queued.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			p.flush()
			return
		case <-p.wake:
			p.flush()
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *Publisher) flush() {
	for {
		batch := p.buffer.DequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.deliverTO)
		_ = p.deliver(ctx, batch)
		cancel()
	}
}

// ErrCircuitOpen is returned while the sink is considered down.
var ErrCircuitOpen = errors.New("notification sink circuit open")

func (p *Publisher) deliver(ctx context.Context, events []Event) error {
	if p.sink == nil {
		return nil
	}
	if p.breaker.IsOpen() {
		// While open, let one probe through per interval.
		last := p.lastProbe.Load()
		now := time.Now().UnixNano()
		if now-last < int64(p.probeInterval) || !p.lastProbe.CompareAndSwap(last, now) {
			p.dropped(len(events), ErrCircuitOpen)
			return ErrCircuitOpen
		}
	}

	if err := p.sink.Deliver(ctx, events); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.lastProbe.Store(time.Now().UnixNano())
			p.logger.Warn("notification sink circuit opened", "breaker", p.breaker.Name(), "error", err)
			p.setCircuit(true)
		}
		p.dropped(len(events), err)
		return err
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.Info("notification sink recovered", "breaker", p.breaker.Name())
		p.setCircuit(false)
	}
	return nil
}

func (p *Publisher) dropped(n int, err error) {
	p.logger.Warn("notification delivery failed", "events", n, "error", err)
	if p.metrics != nil {
		p.metrics.IncrementDeliveryFailure()
		p.metrics.AddDropped(n)
	}
}

func (p *Publisher) setCircuit(open bool) {
	if p.metrics != nil {
		p.metrics.SetCircuitOpen(open)
	}
}

// MultiSink delivers to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, events []Event) error {
	var first error
	for _, s := range m {
		if err := s.Deliver(ctx, events); err != nil && first == nil {
			first = err
		}
	}
	return first
}
