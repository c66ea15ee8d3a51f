package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/metrics"
	"github.com/PostFeed/internal/infra/predicate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "postfeed"

// scrollTopThreshold is the number of posts after which the listing offers a
// "back to top" shortcut.
const scrollTopThreshold = 4

// Snapshot is a read-only copy of a feed's list state.
type Snapshot struct {
	CurrentPage   int           `json:"currentPage"`
	Posts         []domain.Post `json:"posts"`
	SearchTerm    string        `json:"searchTerm"`
	HasMore       bool          `json:"hasMore"`
	IsSearching   bool          `json:"isSearching"`
	IsLoadingMore bool          `json:"isLoadingMore"`
	// Empty reports the "no documents matched" state.
	Empty         bool `json:"empty"`
	ShowScrollTop bool `json:"showScrollTop"`
}

// Controller owns the list state of one posts listing and drives pagination
// and search against the content repository.
//
// Repository calls are made without holding the lock. Every Load and Search
// starts a new generation; responses belonging to an older generation are
// dropped with domain.ErrSuperseded.
type Controller struct {
	client      domain.RepositoryClient
	transformer domain.Transformer
	cfg         domain.QueryConfig
	base        string

	mu            sync.Mutex
	currentPage   int
	posts         []domain.Post
	searchTerm    string
	hasMore       bool
	isSearching   bool
	isLoadingMore bool
	generation    uint64
}

// NewController returns a controller with an empty list. Call Load or Seed
// before paginating.
func NewController(client domain.RepositoryClient, transformer domain.Transformer, cfg domain.QueryConfig) (*Controller, error) {
	if client == nil {
		return nil, errors.New("repository client is nil")
	}
	if transformer == nil {
		return nil, errors.New("transformer is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		client:      client,
		transformer: transformer,
		cfg:         cfg,
		base:        predicate.TypeFilter(cfg.DocumentType),
		currentPage: 1,
		posts:       []domain.Post{},
	}, nil
}

// Request builds the query for page, filtered by term when it is not empty.
func (c *Controller) Request(page int, term string) domain.QueryRequest {
	return domain.QueryRequest{
		Page:        page,
		PageSize:    c.cfg.PageSize,
		FetchFields: c.cfg.FetchFields,
		Predicate:   predicate.Build(c.base, term),
		Orderings:   c.cfg.Orderings,
	}
}

// Load performs the initial query (first page, no filter) and seeds the list.
func (c *Controller) Load(ctx context.Context) (Snapshot, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "feed.Load")
	defer span.End()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	// Operations of older generations return without touching state, so
	// their in-flight flags are cleared here.
	c.isSearching = false
	c.isLoadingMore = false
	c.mu.Unlock()

	resp, err := c.query(ctx, c.Request(1, ""))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initial load failed")
		metrics.FeedOperations.WithLabelValues("load", "error").Inc()
		return c.Snapshot(), err
	}

	posts := c.transformer.TransformBatch(resp.Results)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		metrics.FeedOperations.WithLabelValues("load", "superseded").Inc()
		return c.snapshotLocked(), domain.ErrSuperseded
	}
	c.seedLocked(posts, resp.ResultsCount)
	metrics.FeedOperations.WithLabelValues("load", "ok").Inc()
	return c.snapshotLocked(), nil
}

// Seed initialises the list from a first page fetched by someone else.
func (c *Controller) Seed(resp domain.QueryResponse) Snapshot {
	posts := c.transformer.TransformBatch(resp.Results)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.seedLocked(posts, resp.ResultsCount)
	return c.snapshotLocked()
}

func (c *Controller) seedLocked(posts []domain.Post, count int) {
	c.posts = posts
	c.searchTerm = ""
	c.currentPage = 2
	c.hasMore = count > 0
	c.isSearching = false
	c.isLoadingMore = false
}

// LoadMore fetches the next page and appends it. It does nothing while a
// search is in flight, while another LoadMore is outstanding, or once the
// repository has run out of results.
func (c *Controller) LoadMore(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.isSearching || c.isLoadingMore || !c.hasMore {
		outcome := "ignored"
		if !c.hasMore {
			outcome = "exhausted"
		}
		metrics.FeedOperations.WithLabelValues("load_more", outcome).Inc()
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, nil
	}
	c.isLoadingMore = true
	gen := c.generation
	req := c.Request(c.currentPage, c.searchTerm)
	c.mu.Unlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "feed.LoadMore")
	defer span.End()
	span.SetAttributes(attribute.Int("page", req.Page))

	resp, err := c.query(ctx, req)

	var posts []domain.Post
	if err == nil && resp.ResultsCount > 0 {
		posts = c.transformer.TransformBatch(resp.Results)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		slog.Debug("Discarding stale page", "page", req.Page)
		metrics.FeedOperations.WithLabelValues("load_more", "superseded").Inc()
		return c.snapshotLocked(), domain.ErrSuperseded
	}
	c.isLoadingMore = false

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load more failed")
		metrics.FeedOperations.WithLabelValues("load_more", "error").Inc()
		return c.snapshotLocked(), err
	}

	if resp.ResultsCount == 0 {
		c.hasMore = false
		metrics.FeedOperations.WithLabelValues("load_more", "exhausted").Inc()
		return c.snapshotLocked(), nil
	}

	c.posts = append(c.posts, posts...)
	c.currentPage++
	metrics.FeedOperations.WithLabelValues("load_more", "ok").Inc()
	return c.snapshotLocked(), nil
}

// Search replaces the list with the first page of results for term.
// An empty term clears the filter.
func (c *Controller) Search(ctx context.Context, term string) (Snapshot, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "feed.Search")
	defer span.End()
	span.SetAttributes(attribute.String("term", term))

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.isSearching = true
	c.isLoadingMore = false
	c.mu.Unlock()

	resp, err := c.query(ctx, c.Request(1, term))

	var posts []domain.Post
	if err == nil {
		posts = c.transformer.TransformBatch(resp.Results)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		metrics.FeedOperations.WithLabelValues("search", "superseded").Inc()
		return c.snapshotLocked(), domain.ErrSuperseded
	}

	if err != nil {
		c.isSearching = false
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		metrics.FeedOperations.WithLabelValues("search", "error").Inc()
		return c.snapshotLocked(), err
	}

	c.posts = posts
	c.hasMore = resp.ResultsCount > 0
	c.searchTerm = term
	c.currentPage = 2
	c.isSearching = false
	metrics.FeedOperations.WithLabelValues("search", "ok").Inc()
	return c.snapshotLocked(), nil
}

// Snapshot returns a copy of the current list state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	posts := make([]domain.Post, len(c.posts))
	copy(posts, c.posts)
	return Snapshot{
		CurrentPage:   c.currentPage,
		Posts:         posts,
		SearchTerm:    c.searchTerm,
		HasMore:       c.hasMore,
		IsSearching:   c.isSearching,
		IsLoadingMore: c.isLoadingMore,
		Empty:         !c.isSearching && len(c.posts) == 0 && !c.hasMore,
		ShowScrollTop: len(c.posts) > scrollTopThreshold,
	}
}

func (c *Controller) query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	resp, err := c.client.Query(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrRepositoryQuery) {
			return domain.QueryResponse{}, err
		}
		return domain.QueryResponse{}, fmt.Errorf("%w: %w", domain.ErrRepositoryQuery, err)
	}
	return resp, nil
}
