package domain

import (
	"context"
	"fmt"
)

// QueryRequest is a single paginated query against the content repository.
type QueryRequest struct {
	Page        int
	PageSize    int
	FetchFields []string
	Predicate   string
	Orderings   string
}

// QueryResponse is one batch of documents.
// ResultsCount is the number of documents in this batch, not the grand total.
type QueryResponse struct {
	Results      []RawDocument
	ResultsCount int
}

// QueryConfig holds the fixed query parameters shared by the initial load,
// pagination and search. It is built once from configuration.
type QueryConfig struct {
	PageSize     int
	DocumentType string
	FetchFields  []string
	Orderings    string
}

// DefaultQueryConfig returns the parameters used by the posts listing.
func DefaultQueryConfig() QueryConfig {
	return NewQueryConfig("template-post", 4)
}

// NewQueryConfig builds a config that fetches the post fields of documentType.
func NewQueryConfig(documentType string, pageSize int) QueryConfig {
	fields := []string{"title", "content", "image", "tags"}
	fetch := make([]string, len(fields))
	for i, f := range fields {
		fetch[i] = documentType + "." + f
	}
	return QueryConfig{
		PageSize:     pageSize,
		DocumentType: documentType,
		FetchFields:  fetch,
		Orderings:    "[document.last_publication_date desc]",
	}
}

// Validate checks the config before it is handed to a controller.
func (c QueryConfig) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("invalid page size: %d", c.PageSize)
	}
	if c.DocumentType == "" {
		return fmt.Errorf("document type not configured")
	}
	return nil
}

// RepositoryClient executes queries against the content repository.
type RepositoryClient interface {
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
}

// DocumentWriter persists documents into a local content store.
type DocumentWriter interface {
	Upsert(ctx context.Context, doc *RawDocument) error
	BulkUpsert(ctx context.Context, docs []RawDocument) error
}

// HashReader returns the stored content hash per uid, for change detection.
type HashReader interface {
	GetContentHashes(ctx context.Context, uids []string) (map[string]string, error)
}

// MirrorStore is the local side of the repository mirror.
type MirrorStore interface {
	DocumentWriter
	HashReader
}

// ContentStore is a local mirror that can also answer repository queries.
type ContentStore interface {
	RepositoryClient
	DocumentWriter
	HashReader
}

// EventProducer publishes document events to a queue.
type EventProducer interface {
	Publish(ctx context.Context, doc *RawDocument) error
	Close() error
}
