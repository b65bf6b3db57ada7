package kafkaclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaWriter defines the interface for a Kafka message writer.
// This allows for easy mocking in unit tests.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON events to a single topic.
type Producer struct {
	writer KafkaWriter
	topic  string
	log    *zap.Logger
}

// NewProducer creates a producer for topic on brokers.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{writer: writer, topic: topic, log: log}
}

// Publish JSON-encodes value and writes it with key. Messages with the same
// key land on the same partition.
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	p.log.Debug("event published", zap.String("topic", p.topic), zap.String("key", key))
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		p.log.Warn("failed to close Kafka writer", zap.Error(err))
		return err
	}
	return nil
}
