package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/metrics"
	"github.com/PostFeed/internal/infra/queue"
)

// DocumentSyncService keeps the local content store in step with the
// repository by applying published-document events from Kafka.
type DocumentSyncService struct {
	consumer *queue.KafkaConsumer
	store    domain.DocumentWriter
}

func NewDocumentSyncService(consumer *queue.KafkaConsumer, store domain.DocumentWriter) *DocumentSyncService {
	return &DocumentSyncService{
		consumer: consumer,
		store:    store,
	}
}

func (s *DocumentSyncService) Start(ctx context.Context) {
	slog.Info("Starting document sync service (Kafka consumer)")
	go s.consumer.Start(ctx, s.handleEvent)
}

func (s *DocumentSyncService) handleEvent(ctx context.Context, doc *domain.RawDocument) error {
	start := time.Now()
	slog.Info("Consuming document event", "uid", doc.UID, "type", doc.Type)

	if doc.UID == "" {
		metrics.DocumentSyncErrors.WithLabelValues(doc.Type).Inc()
		return fmt.Errorf("%w: document has no uid", domain.ErrMalformedDocument)
	}

	err := s.store.Upsert(ctx, doc)
	metrics.DocumentSyncDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Error("Failed to sync document", "uid", doc.UID, "error", err)
		metrics.DocumentSyncErrors.WithLabelValues(doc.Type).Inc()
		return err
	}

	metrics.DocumentSyncSuccess.WithLabelValues(doc.Type).Inc()
	return nil
}

func (s *DocumentSyncService) Stop() error {
	return s.consumer.Close()
}
