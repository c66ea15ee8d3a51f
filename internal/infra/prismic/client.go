// Package prismic queries a Prismic-compatible REST content repository.
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/metrics"
	"github.com/PostFeed/internal/infra/predicate"
	"github.com/PostFeed/pkg/logging"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const backendName = "prismic"

// errClient marks responses that must not be retried.
var errClient = errors.New("client error")

type Options struct {
	AccessToken string
	Timeout     time.Duration
	// RateLimit is the maximum number of requests per second. Zero disables pacing.
	RateLimit float64
	// RefTTL is how long the master ref is reused before it is fetched again.
	RefTTL     time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Client implements domain.RepositoryClient over HTTP.
type Client struct {
	baseURL string
	opts    Options
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	sampler *logging.Sampler

	mu        sync.Mutex
	ref       string
	refExpiry time.Time
}

var _ domain.RepositoryClient = (*Client)(nil)

func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RefTTL <= 0 {
		opts.RefTTL = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}

	cbSettings := gobreaker.Settings{
		Name:        backendName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// 4xx answers mean the repository is up.
			return err == nil || errors.Is(err, errClient)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("CircuitBreaker state changed", "name", name, "from", from, "to", to)
		},
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		limiter: rate.NewLimiter(limit, 1),
		sampler: logging.NewSampler(10),
	}
}

// apiResponse is the subset of the /api/v2 entry point we need.
type apiResponse struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// searchResponse is the body of /api/v2/documents/search.
type searchResponse struct {
	Page             int               `json:"page"`
	ResultsPerPage   int               `json:"results_per_page"`
	ResultsSize      int               `json:"results_size"`
	TotalResultsSize int               `json:"total_results_size"`
	TotalPages       int               `json:"total_pages"`
	Results          []json.RawMessage `json:"results"`
}

// Query runs req against the documents search endpoint.
func (c *Client) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	ctx, span := otel.Tracer("postfeed").Start(ctx, "prismic.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("page", req.Page), attribute.String("predicate", req.Predicate))

	start := time.Now()
	resp, err := c.query(ctx, req)
	metrics.RepositoryQueryDuration.WithLabelValues(backendName).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.RepositoryQueries.WithLabelValues(backendName, "error").Inc()
		return domain.QueryResponse{}, fmt.Errorf("%w: %w", domain.ErrRepositoryQuery, err)
	}
	metrics.RepositoryQueries.WithLabelValues(backendName, "success").Inc()
	return resp, nil
}

func (c *Client) query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	ref, err := c.masterRef(ctx)
	if err != nil {
		return domain.QueryResponse{}, fmt.Errorf("failed to resolve master ref: %w", err)
	}

	var body searchResponse
	if err := c.getJSON(ctx, c.searchURL(ref, req), &body); err != nil {
		return domain.QueryResponse{}, err
	}

	docs := make([]domain.RawDocument, 0, len(body.Results))
	for _, raw := range body.Results {
		var doc domain.RawDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			// Dropped here rather than failing the page; results_size still
			// drives pagination.
			c.sampler.Warn("decode", "Skipping undecodable document", "page", req.Page, "error", err)
			metrics.DocumentsTransformed.WithLabelValues("undecodable").Inc()
			continue
		}
		docs = append(docs, doc)
	}

	slog.Debug("Fetched page",
		"backend", backendName,
		"page", body.Page,
		"results_size", body.ResultsSize,
		"total_results_size", body.TotalResultsSize)

	return domain.QueryResponse{Results: docs, ResultsCount: body.ResultsSize}, nil
}

// masterRef returns the cached master ref or fetches a fresh one.
func (c *Client) masterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.ref != "" && time.Now().Before(c.refExpiry) {
		ref := c.ref
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	u := c.baseURL + "/api/v2"
	if c.opts.AccessToken != "" {
		u += "?access_token=" + url.QueryEscape(c.opts.AccessToken)
	}

	var api apiResponse
	if err := c.getJSON(ctx, u, &api); err != nil {
		return "", err
	}
	for _, r := range api.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.ref = r.Ref
			c.refExpiry = time.Now().Add(c.opts.RefTTL)
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", errors.New("no master ref in api response")
}

func (c *Client) searchURL(ref string, req domain.QueryRequest) string {
	q := url.Values{}
	q.Set("ref", ref)
	q.Set("q", predicate.Wrap(req.Predicate))
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("pageSize", strconv.Itoa(req.PageSize))
	if len(req.FetchFields) > 0 {
		q.Set("fetch", strings.Join(req.FetchFields, ","))
	}
	if req.Orderings != "" {
		q.Set("orderings", req.Orderings)
	}
	if c.opts.AccessToken != "" {
		q.Set("access_token", c.opts.AccessToken)
	}
	return c.baseURL + "/api/v2/documents/search?" + q.Encode()
}

// getJSON fetches u through the circuit breaker, retrying network errors and
// 5xx answers with exponential backoff, and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		backoff := c.opts.Backoff
		var lastErr error
		for i := 0; i <= c.opts.MaxRetries; i++ {
			if i > 0 {
				slog.Info("Retrying request", "backend", backendName, "attempt", i, "max_retries", c.opts.MaxRetries)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
					backoff *= 2
				}
			}

			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			err := c.fetch(ctx, u, v)
			if err == nil {
				return nil, nil
			}
			if errors.Is(err, errClient) || ctx.Err() != nil {
				return nil, err
			}
			slog.Warn("Request failed", "backend", backendName, "attempt", i, "error", err)
			lastErr = err
		}
		return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
	})
	if err != nil {
		return fmt.Errorf("circuit breaker execute failed: %w", err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w: %w", errClient, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("repository returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: repository returned status %d: %s", errClient, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", errClient, err)
	}
	return nil
}
