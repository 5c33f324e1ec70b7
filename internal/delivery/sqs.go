package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"

	"vcissuer/internal/platform/metrics"
)

const (
	headerKind      = "kind"
	headerSessionID = "sessionId"
)

type sqsAPI interface {
	SendMessageWithContext(ctx aws.Context, input *sqs.SendMessageInput, opts ...request.Option) (*sqs.SendMessageOutput, error)
}

// SQSSender posts outcomes to a queue. On a FIFO queue the session id is the
// message group and, with the kind, the deduplication id, so a redelivered
// callback cannot post the same outcome twice within the dedup window.
type SQSSender struct {
	client   sqsAPI
	queueURL string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewSQSSender(client sqsAPI, queueURL string, logger *slog.Logger, m *metrics.Metrics) *SQSSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSSender{client: client, queueURL: queueURL, logger: logger, metrics: m}
}

func (s *SQSSender) Send(ctx context.Context, outcome Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]*sqs.MessageAttributeValue{
			headerSessionID: stringAttribute(outcome.SessionID.String()),
			headerKind:      stringAttribute(outcome.Kind()),
		},
	}
	if strings.HasSuffix(s.queueURL, ".fifo") {
		input.MessageGroupId = aws.String(outcome.SessionID.String())
		input.MessageDeduplicationId = aws.String(outcome.SessionID.String() + "-" + outcome.Kind())
	}

	out, err := s.client.SendMessageWithContext(ctx, input)
	s.metrics.IncDelivery(outcome.Kind(), err == nil)
	if err != nil {
		return fmt.Errorf("deliver %s outcome: %w", outcome.Kind(), err)
	}
	s.logger.InfoContext(ctx, "outcome delivered",
		"session_id", outcome.SessionID.String(),
		"kind", outcome.Kind(),
		"message_id", aws.StringValue(out.MessageId),
	)
	return nil
}

func stringAttribute(v string) *sqs.MessageAttributeValue {
	return &sqs.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
