package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/metrics"
	"github.com/PostFeed/pkg/logging"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer reads published-document events and hands them to a handler.
// Events the handler rejects are forwarded to the dead letter producer.
type KafkaConsumer struct {
	reader      MessageReader
	dlqProducer domain.EventProducer
	sampler     *logging.Sampler
}

func NewKafkaConsumer(brokers []string, topic string, groupID string, dlqProducer domain.EventProducer) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	slog.Info("Kafka Consumer initialized", "brokers", brokers, "topic", topic, "group", groupID)
	return NewConsumer(r, dlqProducer)
}

// NewConsumer wraps an existing reader.
func NewConsumer(reader MessageReader, dlqProducer domain.EventProducer) *KafkaConsumer {
	return &KafkaConsumer{
		reader:      reader,
		dlqProducer: dlqProducer,
		sampler:     logging.NewSampler(50),
	}
}

type MessageHandler func(ctx context.Context, doc *domain.RawDocument) error

// Start consumes until ctx is cancelled or the reader fails.
func (c *KafkaConsumer) Start(ctx context.Context, handler MessageHandler) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				slog.Info("Kafka consumer stopped")
			} else {
				slog.Error("Error reading kafka message", "error", err)
			}
			return
		}

		var doc domain.RawDocument
		if err := json.Unmarshal(m.Value, &doc); err != nil {
			c.sampler.Warn("unmarshal", "Error unmarshaling document event", "key", string(m.Key), "error", err)
			continue
		}

		slog.Debug("Received document from Kafka", "uid", doc.UID, "partition", m.Partition, "offset", m.Offset)

		if err := handler(ctx, &doc); err != nil {
			slog.Error("Error handling document event", "uid", doc.UID, "error", err)

			if c.dlqProducer != nil {
				slog.Info("Publishing failed event to DLQ", "uid", doc.UID)
				if dlqErr := c.dlqProducer.Publish(ctx, &doc); dlqErr != nil {
					slog.Error("Failed to publish to DLQ", "uid", doc.UID, "error", dlqErr)
				} else {
					metrics.DLQMessagesPublished.WithLabelValues(doc.Type).Inc()
				}
			}
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
