package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	return &sqs.SendMessageOutput{}, f.err
}

type fakeKafka struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

func sampleEntry() OutboxEntry {
	return OutboxEntry{
		ID:        uuid.New(),
		Aggregate: "patient:p1",
		Type:      "vitals.alert.raised.v1",
		Payload:   []byte(`{"event_type":"vitals.alert.raised.v1"}`),
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQSPublisher(t *testing.T) {
	assert.Nil(t, NewSQSPublisher(&fakeSQS{}, ""))
	assert.Nil(t, NewSQSPublisher(nil, "https://sqs/queue"))

	fake := &fakeSQS{}
	pub := NewSQSPublisher(fake, "https://sqs/queue")
	entry := sampleEntry()
	require.NoError(t, pub.Handle(context.Background(), entry))
	assert.Equal(t, "https://sqs/queue", aws.ToString(fake.input.QueueUrl))
	assert.Equal(t, string(entry.Payload), aws.ToString(fake.input.MessageBody))
	assert.Equal(t, entry.Type, aws.ToString(fake.input.MessageAttributes["event_type"].StringValue))

	fake.err = errors.New("throttled")
	assert.Error(t, pub.Handle(context.Background(), entry))
}

func TestKafkaPublisher(t *testing.T) {
	assert.Nil(t, NewKafkaPublisher(nil, "topic"))
	assert.NotNil(t, NewKafkaPublisher([]string{"localhost:9092"}, "topic"))

	fake := &fakeKafka{}
	pub := newKafkaPublisherWithWriter(fake)
	entry := sampleEntry()
	require.NoError(t, pub.Handle(context.Background(), entry))
	require.Len(t, fake.msgs, 1)
	assert.Equal(t, []byte("patient:p1"), fake.msgs[0].Key)
	assert.Equal(t, []byte(entry.Payload), fake.msgs[0].Value)
	assert.Equal(t, "event_type", fake.msgs[0].Headers[1].Key)

	require.NoError(t, pub.Close())
	assert.True(t, fake.closed)
}

func TestFanOut(t *testing.T) {
	assert.Nil(t, NewFanOut(nil, (*SQSPublisher)(nil), (*KafkaPublisher)(nil)))

	single := newKafkaPublisherWithWriter(&fakeKafka{})
	assert.Same(t, single, NewFanOut(nil, single))

	okKafka := &fakeKafka{}
	failing := &fakeSQS{err: errors.New("sqs down")}
	fan := NewFanOut(newKafkaPublisherWithWriter(okKafka), NewSQSPublisher(failing, "q"))
	err := fan.Handle(context.Background(), sampleEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqs down")
	assert.Len(t, okKafka.msgs, 1)
}
