// Package producer publishes records to Kafka for relying-party delivery and
// the audit stream.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("producer is closed")

// Message is one record to publish.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type Config struct {
	Brokers         string
	Acks            string // "0", "1" or "all"
	Retries         int
	DeliveryTimeout time.Duration
}

// ErrorHandler is told about records that ProduceAsync could not deliver.
type ErrorHandler func(msg *Message, err error)

// Producer wraps a franz-go client.
type Producer struct {
	client  *kgo.Client
	logger  *slog.Logger
	onError ErrorHandler
	mu      sync.RWMutex
	closed  bool
}

type Option func(*Producer)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// WithErrorHandler registers a callback for failed asynchronous deliveries.
func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Producer) {
		p.onError = h
	}
}

// New connects lazily; no broker is contacted until the first produce.
func New(cfg Config, opts ...Option) (*Producer, error) {
	if strings.TrimSpace(cfg.Brokers) == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	var acks kgo.Acks
	switch cfg.Acks {
	case "0":
		acks = kgo.NoAck()
	case "1":
		acks = kgo.LeaderAck()
	default:
		acks = kgo.AllISRAcks()
	}

	kopts := []kgo.Opt{
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.RequiredAcks(acks),
		kgo.RecordRetries(cfg.Retries),
		kgo.ProducerLinger(5 * time.Millisecond),
	}
	// Idempotent writes need all-ISR acks.
	if cfg.Acks == "0" || cfg.Acks == "1" {
		kopts = append(kopts, kgo.DisableIdempotentWrite())
	}
	if cfg.DeliveryTimeout > 0 {
		kopts = append(kopts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (m *Message) record() *kgo.Record {
	headers := make([]kgo.RecordHeader, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return &kgo.Record{Topic: m.Topic, Key: m.Key, Value: m.Value, Headers: headers}
}

func (p *Producer) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Produce returns once the broker has acknowledged the record.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	if p.isClosed() {
		return ErrClosed
	}
	if err := p.client.ProduceSync(ctx, msg.record()).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// ProduceAsync buffers the record and returns. Delivery failures go to the
// ErrorHandler and the log.
func (p *Producer) ProduceAsync(ctx context.Context, msg *Message) error {
	if p.isClosed() {
		return ErrClosed
	}
	// The caller's context may end before the record is flushed.
	p.client.Produce(context.WithoutCancel(ctx), msg.record(), func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		p.logger.Error("kafka delivery failed",
			"topic", r.Topic,
			"partition", r.Partition,
			"error", err,
		)
		if p.onError != nil {
			p.onError(msg, err)
		}
	})
	return nil
}

// Ping reports whether any broker answers.
func (p *Producer) Ping(ctx context.Context) error {
	if p.isClosed() {
		return ErrClosed
	}
	return p.client.Ping(ctx)
}

// Client exposes the underlying client for admin checks.
func (p *Producer) Client() *kgo.Client {
	return p.client
}

// Close flushes buffered records, waiting at most until ctx ends.
func (p *Producer) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.client.Flush(ctx)
	if err != nil {
		p.logger.Warn("kafka producer closed with unflushed records",
			"buffered", p.client.BufferedProduceRecords(),
			"error", err,
		)
	}
	p.client.Close()
	return err
}
