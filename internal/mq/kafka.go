package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           250 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
}

// Writer is the part of *kafka.Writer the publishers use.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Keyed is a payload that knows its partition key. Events for one vessel
// share a key so they stay ordered.
type Keyed interface {
	PartitionKey() string
}

func PublishJSON(ctx context.Context, writer Writer, key string, payload any) error {
	msg, err := encode(key, payload)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, msg)
}

// PublishAll writes every payload in one call.
func PublishAll[T Keyed](ctx context.Context, writer Writer, payloads []T) error {
	if len(payloads) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(payloads))
	for _, p := range payloads {
		msg, err := encode(p.PartitionKey(), p)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return writer.WriteMessages(ctx, msgs...)
}

func encode(key string, payload any) (kafka.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now().UTC(),
	}, nil
}

func ParseMessageJSON[T any](msg kafka.Message) (T, error) {
	var payload T
	err := json.Unmarshal(msg.Value, &payload)
	return payload, err
}
