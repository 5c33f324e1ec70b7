// Package audit records what the service did for each session on a
// compliance stream. Publishing is best effort: callers log failures and
// carry on.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vcissuer/internal/platform/metrics"
	"vcissuer/pkg/platform/circuit"
)

// ErrBufferFull is returned when the async buffer cannot take another event.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher hands events to a sink, optionally through a buffered channel
// drained by one goroutine. With a fallback configured, a breaker diverts
// writes away from a failing sink.
type Publisher struct {
	sink     Sink
	fallback Sink
	breaker  *circuit.Breaker
	events   chan Event
	wg       sync.WaitGroup
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	async    bool
	closed   bool
	mu       sync.RWMutex
}

type Option func(*Publisher)

// WithAsyncBuffer queues up to size events and writes them in the background.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithFallback writes to fallback while breaker is open.
func WithFallback(fallback Sink, breaker *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.fallback = fallback
		p.breaker = breaker
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.write(context.Background(), event); err != nil {
			p.metrics.IncAuditDropped()
			p.logger.Error("failed to publish audit event",
				"error", err,
				"event_name", string(event.Name),
				"session_id", event.User.SessionID,
			)
		}
	}
}

// Emit stamps the event and publishes it. In async mode it never blocks: a
// full buffer drops the event and returns ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Time.IsZero() {
		event.Time = p.now()
	}
	if !p.async {
		err := p.write(ctx, event)
		if err != nil {
			p.metrics.IncAuditDropped()
		}
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.IncAuditDropped()
		return ErrBufferFull
	}
	select {
	case p.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.IncAuditDropped()
		p.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"event_name", string(event.Name),
			"session_id", event.User.SessionID,
		)
		return ErrBufferFull
	}
}

func (p *Publisher) write(ctx context.Context, event Event) error {
	if p.breaker == nil {
		return p.sink.Write(ctx, event)
	}
	if !p.breaker.Allow() {
		return p.fallback.Write(ctx, event)
	}
	err := p.sink.Write(ctx, event)
	if t := p.breaker.Record(err); t.Changed() {
		p.logger.WarnContext(ctx, "audit sink breaker changed state",
			"breaker", p.breaker.Name(),
			"from", t.From.String(),
			"to", t.To.String(),
		)
	}
	if err != nil {
		if ferr := p.fallback.Write(ctx, event); ferr != nil {
			return errors.Join(err, ferr)
		}
		return nil
	}
	return nil
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	if !p.async {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	p.wg.Wait()
}
