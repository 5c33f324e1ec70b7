//go:build integration

package producer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"vcissuer/internal/platform/kafka"
	"vcissuer/internal/platform/kafka/producer"
	"vcissuer/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	})
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close(context.Background())
	}
}

func (s *ProducerIntegrationSuite) consume(topic string) *kgo.Client {
	consumer, err := s.kafka.NewConsumer("test-"+topic, topic)
	s.Require().NoError(err)
	s.T().Cleanup(consumer.Close)
	return consumer
}

func (s *ProducerIntegrationSuite) TestProduceIsAcknowledged() {
	ctx := context.Background()
	topic := "test-produce-sync"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic:   topic,
		Key:     []byte("session-1"),
		Value:   []byte(`{"sub":"urn:fdc:1"}`),
		Headers: map[string]string{"kind": "credential"},
	})
	s.Require().NoError(err)

	record := s.kafka.WaitForRecord(ctx, s.consume(topic), 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "session-1"
	})
	s.Require().NotNil(record)
	s.JSONEq(`{"sub":"urn:fdc:1"}`, string(record.Value))
	s.Require().Len(record.Headers, 1)
	s.Equal("kind", record.Headers[0].Key)
	s.Equal("credential", string(record.Headers[0].Value))
}

func (s *ProducerIntegrationSuite) TestProduceAsyncIsFlushedOnClose() {
	ctx := context.Background()
	topic := "test-produce-async"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1))

	prod, err := producer.New(producer.Config{Brokers: s.kafka.Brokers})
	s.Require().NoError(err)
	s.Require().NoError(prod.ProduceAsync(ctx, &producer.Message{Topic: topic, Key: []byte("async-1"), Value: []byte("{}")}))
	s.Require().NoError(prod.Close(ctx))

	record := s.kafka.WaitForRecord(ctx, s.consume(topic), 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "async-1"
	})
	s.NotNil(record)
}

func (s *ProducerIntegrationSuite) TestClosedProducerRejects() {
	prod, err := producer.New(producer.Config{Brokers: s.kafka.Brokers})
	s.Require().NoError(err)
	s.Require().NoError(prod.Close(context.Background()))

	err = prod.Produce(context.Background(), &producer.Message{Topic: "any"})
	s.True(errors.Is(err, producer.ErrClosed))
	s.ErrorIs(prod.Ping(context.Background()), producer.ErrClosed)
}

func (s *ProducerIntegrationSuite) TestHealthChecker() {
	ctx := context.Background()
	s.Require().NoError(s.kafka.CreateTopic(ctx, "test-health", 1))

	s.NoError(kafka.NewHealthChecker(s.producer.Client(), "test-health").Check(ctx))
	s.Error(kafka.NewHealthChecker(s.producer.Client(), "test-health-missing-topic").Check(ctx))
}
