package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"vcissuer/internal/platform/kafka/producer"
	"vcissuer/internal/platform/privacy"
)

// Sink persists events. Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Producer is the subset of producer.Producer the Kafka sink needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink writes each event to topic keyed by session id.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(p Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Write(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic:   s.topic,
		Key:     []byte(event.User.SessionID),
		Value:   body,
		Headers: map[string]string{"event_name": string(event.Name)},
	})
}

// LogSink writes events to the log. It backs the Kafka sink while the
// breaker is open. Restricted fields are never logged and the client IP is
// truncated.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, event Event) error {
	event.Restricted = nil
	if event.User.IPAddress != "" {
		event.User.IPAddress = privacy.AnonymizeIP(event.User.IPAddress)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	s.logger.InfoContext(ctx, "audit event",
		"event_name", string(event.Name),
		"session_id", event.User.SessionID,
		"event", json.RawMessage(body),
	)
	return nil
}

// MemorySink keeps events in process.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}

// ByName returns the events named name in write order.
func (s *MemorySink) ByName(name EventName) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
