package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/predicate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// maxMirrorPages bounds a single mirror run.
const maxMirrorPages = 500

// MirrorService pages through the remote repository on an interval and
// publishes new or changed documents as events. The document sync consumer
// applies them to the local store.
//
// While the store holds none of the documents seen so far, batches are
// written straight to the store instead of going through the queue.
type MirrorService struct {
	source    domain.RepositoryClient
	store     domain.MirrorStore
	producer  domain.EventProducer
	cfg       domain.QueryConfig
	interval  time.Duration
	batchSize int
	seeding   bool
}

func NewMirrorService(
	source domain.RepositoryClient,
	store domain.MirrorStore,
	producer domain.EventProducer,
	cfg domain.QueryConfig,
	interval time.Duration,
	batchSize int,
) *MirrorService {
	return &MirrorService{
		source:    source,
		store:     store,
		producer:  producer,
		cfg:       cfg,
		interval:  interval,
		batchSize: batchSize,
		seeding:   true,
	}
}

func (s *MirrorService) Start(ctx context.Context) {
	slog.Info("Starting repository mirror", "interval", s.interval, "batch_size", s.batchSize)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Run(ctx); err != nil {
			slog.Error("Mirror run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("Repository mirror stopped")
			return
		case <-ticker.C:
		}
	}
}

// Run performs one full pass over the repository.
func (s *MirrorService) Run(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "mirror.Run")
	defer span.End()

	base := predicate.TypeFilter(s.cfg.DocumentType)
	published := 0
	for page := 1; page <= maxMirrorPages; page++ {
		resp, err := s.source.Query(ctx, domain.QueryRequest{
			Page:      page,
			PageSize:  s.batchSize,
			Predicate: base,
			Orderings: s.cfg.Orderings,
		})
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("page %d: %w", page, err)
		}
		if resp.ResultsCount == 0 {
			break
		}

		n, err := s.processBatch(ctx, resp.Results)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("page %d: %w", page, err)
		}
		published += n
	}

	span.SetAttributes(attribute.Int("published", published))
	slog.Info("Mirror run finished", "published", published)
	return nil
}

func (s *MirrorService) processBatch(ctx context.Context, docs []domain.RawDocument) (int, error) {
	// Dedup within batch
	unique := make([]domain.RawDocument, 0, len(docs))
	seen := make(map[string]bool)
	for _, d := range docs {
		if d.UID != "" && !seen[d.UID] {
			seen[d.UID] = true
			unique = append(unique, d)
		}
	}
	if len(unique) == 0 {
		return 0, nil
	}

	uids := make([]string, len(unique))
	for i := range unique {
		uids[i] = unique[i].UID
	}

	existing, err := s.store.GetContentHashes(ctx, uids)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch hashes: %w", err)
	}

	if s.seeding && len(existing) == 0 {
		if err := s.store.BulkUpsert(ctx, unique); err != nil {
			return 0, fmt.Errorf("failed to seed store: %w", err)
		}
		slog.Debug("Seeded store", "documents", len(unique))
		return len(unique), nil
	}
	s.seeding = false

	published := 0
	for i := range unique {
		doc := &unique[i]
		old, ok := existing[doc.UID]
		if ok && old == doc.ContentHash() {
			continue
		}
		if err := s.producer.Publish(ctx, doc); err != nil {
			return published, fmt.Errorf("failed to publish %s: %w", doc.UID, err)
		}
		published++
	}
	return published, nil
}
