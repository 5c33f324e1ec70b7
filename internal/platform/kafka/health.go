// Package kafka holds broker-level helpers shared by producers.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// HealthChecker confirms the cluster answers and the topics this service
// writes to exist.
type HealthChecker struct {
	admin  *kadm.Client
	topics []string
}

func NewHealthChecker(client *kgo.Client, topics ...string) *HealthChecker {
	return &HealthChecker{admin: kadm.NewClient(client), topics: topics}
}

func (h *HealthChecker) Check(ctx context.Context) error {
	brokers, err := h.admin.ListBrokers(ctx)
	if err != nil {
		return fmt.Errorf("list kafka brokers: %w", err)
	}
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers reachable")
	}
	if len(h.topics) == 0 {
		return nil
	}

	details, err := h.admin.ListTopics(ctx, h.topics...)
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	for _, topic := range h.topics {
		detail, ok := details[topic]
		if !ok {
			return fmt.Errorf("kafka topic %s missing", topic)
		}
		if detail.Err != nil {
			return fmt.Errorf("kafka topic %s: %w", topic, detail.Err)
		}
	}
	return nil
}

func (h *HealthChecker) Name() string {
	return "kafka"
}
