package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/segmentio/kafka-go"

	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher forwards outbox envelopes to an SQS queue.
type SQSPublisher struct {
	client   sqsSender
	queueURL string
}

func NewSQSPublisher(client sqsSender, queueURL string) *SQSPublisher {
	if client == nil || strings.TrimSpace(queueURL) == "" {
		return nil
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(entry.Payload)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(entry.Type)},
			"aggregate":  {DataType: aws.String("String"), StringValue: aws.String(entry.Aggregate)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: sqs publish %s: %w", entry.ID, err)
	}
	return nil
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher streams outbox envelopes to a Kafka topic keyed by
// aggregate so one patient's events stay ordered within a partition.
type KafkaPublisher struct {
	writer kafkaWriter
}

// NewKafkaPublisher returns nil when no brokers are configured.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func newKafkaPublisherWithWriter(w kafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.Aggregate),
		Value: entry.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(entry.ID.String())},
			{Key: "event_type", Value: []byte(entry.Type)},
		},
		Time: entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("events: kafka publish %s: %w", entry.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// FanOut delivers each entry to every handler. An entry counts as delivered
// only when all handlers succeed, so a partial failure is retried everywhere.
type FanOut []DeliveryHandler

// NewFanOut drops nil handlers; it returns nil when none remain.
func NewFanOut(handlers ...DeliveryHandler) DeliveryHandler {
	var out FanOut
	for _, h := range handlers {
		if h == nil || isNilHandler(h) {
			continue
		}
		out = append(out, h)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (f FanOut) Handle(ctx context.Context, entry OutboxEntry) error {
	var errs []error
	for _, h := range f {
		if err := h.Handle(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isNilHandler(h DeliveryHandler) bool {
	switch v := h.(type) {
	case *SQSPublisher:
		return v == nil
	case *KafkaPublisher:
		return v == nil
	}
	return false
}

// NewLogHandler logs each entry. Used when no transport is configured so the
// outbox still drains in local runs.
func NewLogHandler(logger *logging.Logger) DeliveryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return DeliveryHandlerFunc(func(_ context.Context, entry OutboxEntry) error {
		logger.Info("outbox event", "event_id", entry.ID, "type", entry.Type, "aggregate", entry.Aggregate)
		return nil
	})
}
