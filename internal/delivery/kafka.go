package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"vcissuer/internal/platform/kafka/producer"
	"vcissuer/internal/platform/metrics"
)

// Producer is the subset of producer.Producer used for delivery.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSender publishes outcomes keyed by session id so every message for a
// session lands on one partition in order.
type KafkaSender struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewKafkaSender(p Producer, topic string, logger *slog.Logger, m *metrics.Metrics) *KafkaSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSender{producer: p, topic: topic, logger: logger, metrics: m}
}

func (s *KafkaSender) Send(ctx context.Context, outcome Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	err = s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(outcome.SessionID.String()),
		Value: body,
		Headers: map[string]string{
			headerKind: outcome.Kind(),
		},
	})
	s.metrics.IncDelivery(outcome.Kind(), err == nil)
	if err != nil {
		return fmt.Errorf("deliver %s outcome: %w", outcome.Kind(), err)
	}
	s.logger.InfoContext(ctx, "outcome delivered",
		"session_id", outcome.SessionID.String(),
		"kind", outcome.Kind(),
	)
	return nil
}
