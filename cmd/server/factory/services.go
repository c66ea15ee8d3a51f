package factory

import (
	"errors"
	"fmt"

	"github.com/PostFeed/internal/app"
	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/prismic"
	"github.com/PostFeed/internal/infra/queue"
	"github.com/PostFeed/internal/infra/repository"
	"github.com/PostFeed/internal/infra/transformer"
	"github.com/PostFeed/pkg/config"
	"github.com/PostFeed/pkg/logging"
)

// NewPostTransformer creates the document transformer for the display timezone.
func NewPostTransformer(cfg *config.Config) (domain.Transformer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return transformer.NewPostTransformer(loc, logging.NewSampler(10)), nil
}

// NewSessionRegistry creates the feed session registry.
func NewSessionRegistry(
	client domain.RepositoryClient,
	tr domain.Transformer,
	qc domain.QueryConfig,
	cfg *config.Config,
) (*app.SessionRegistry, error) {
	if client == nil {
		return nil, errors.New("repository client is nil")
	}
	if tr == nil {
		return nil, errors.New("transformer is nil")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("invalid session ttl: %s", cfg.SessionTTL)
	}

	factory := func() (*app.Controller, error) {
		return app.NewController(client, tr, qc)
	}
	return app.NewSessionRegistry(factory, cfg.SessionTTL), nil
}

// NewEventProducer wraps the Kafka producer as an EventProducer.
func NewEventProducer(p *queue.KafkaProducer) (domain.EventProducer, error) {
	if p == nil {
		return nil, errors.New("kafka producer is nil")
	}
	return p, nil
}

// NewMirrorService creates the service copying remote documents into the local store.
func NewMirrorService(
	source *prismic.Client,
	store *repository.MongoRepository,
	eventProducer domain.EventProducer,
	qc domain.QueryConfig,
	cfg *config.Config,
) (*app.MirrorService, error) {
	if source == nil {
		return nil, errors.New("prismic client is nil")
	}
	if store == nil {
		return nil, errors.New("content store is nil")
	}
	if eventProducer == nil {
		return nil, errors.New("event producer is nil")
	}
	if cfg.MirrorBatchSize < 1 || cfg.MirrorBatchSize > 100 {
		return nil, fmt.Errorf("invalid mirror batch size: %d (must be 1-100)", cfg.MirrorBatchSize)
	}
	if cfg.MirrorInterval <= 0 {
		return nil, fmt.Errorf("invalid mirror interval: %s", cfg.MirrorInterval)
	}

	return app.NewMirrorService(
		source,
		store,
		eventProducer,
		qc,
		cfg.MirrorInterval,
		cfg.MirrorBatchSize,
	), nil
}

// NewDocumentSyncService creates the service applying document events to the store.
func NewDocumentSyncService(consumer *queue.KafkaConsumer, store *repository.MongoRepository) (*app.DocumentSyncService, error) {
	if consumer == nil {
		return nil, errors.New("kafka consumer is nil")
	}
	if store == nil {
		return nil, errors.New("content store is nil")
	}
	return app.NewDocumentSyncService(consumer, store), nil
}
