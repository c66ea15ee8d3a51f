package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/PostFeed/internal/domain"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer MessageWriter
}

var _ domain.EventProducer = (*KafkaProducer)(nil)

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{}, // same uid, same partition: updates stay ordered
	}
	slog.Info("Kafka Producer initialized", "brokers", brokers, "topic", topic)
	return NewProducer(w)
}

// NewProducer wraps an existing writer.
func NewProducer(w MessageWriter) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

func (p *KafkaProducer) Publish(ctx context.Context, doc *domain.RawDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(doc.UID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write to kafka", "error", err)
		return err
	}

	slog.Debug("Published document to Kafka", "uid", doc.UID, "type", doc.Type)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
