package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/domain/mocks"
	"github.com/PostFeed/internal/infra/transformer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const basePredicate = `[at(document.type,"template-post")]`

func docs(prefix string, n int) []domain.RawDocument {
	out := make([]domain.RawDocument, n)
	for i := range out {
		uid := fmt.Sprintf("%s-%d", prefix, i+1)
		out[i] = domain.RawDocument{
			UID:                 uid,
			Type:                "template-post",
			LastPublicationDate: "2021-06-01T10:00:00+0000",
			Data: domain.DocumentData{
				Title:   domain.RichText{{Type: "heading1", Text: uid}},
				Content: domain.RichText{{Type: domain.BlockParagraph, Text: "some words here"}},
			},
		}
	}
	return out
}

func batch(prefix string, n int) domain.QueryResponse {
	return domain.QueryResponse{Results: docs(prefix, n), ResultsCount: n}
}

func pageRequest(page int, predicate string) domain.QueryRequest {
	cfg := domain.DefaultQueryConfig()
	return domain.QueryRequest{
		Page:        page,
		PageSize:    4,
		FetchFields: cfg.FetchFields,
		Predicate:   predicate,
		Orderings:   cfg.Orderings,
	}
}

func newTestController(t *testing.T, client domain.RepositoryClient) *Controller {
	t.Helper()
	c, err := NewController(client, transformer.NewPostTransformer(time.UTC, nil), domain.DefaultQueryConfig())
	require.NoError(t, err)
	return c
}

func slugs(posts []domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Slug
	}
	return out
}

func TestNewController_Validation(t *testing.T) {
	tr := transformer.NewPostTransformer(time.UTC, nil)
	client := new(mocks.MockRepositoryClient)

	_, err := NewController(nil, tr, domain.DefaultQueryConfig())
	assert.Error(t, err)
	_, err = NewController(client, nil, domain.DefaultQueryConfig())
	assert.Error(t, err)
	_, err = NewController(client, tr, domain.QueryConfig{DocumentType: "x"})
	assert.Error(t, err)
}

func TestController_Request(t *testing.T) {
	c := newTestController(t, new(mocks.MockRepositoryClient))

	req := c.Request(3, "")
	assert.Equal(t, pageRequest(3, basePredicate), req)
	assert.Equal(t, []string{
		"template-post.title", "template-post.content", "template-post.image", "template-post.tags",
	}, req.FetchFields)
	assert.Equal(t, "[document.last_publication_date desc]", req.Orderings)

	req = c.Request(1, "rust")
	assert.Equal(t, basePredicate+`[fulltext(document,"rust")]`, req.Predicate)
}

func TestController_InitialLoad(t *testing.T) {
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, pageRequest(1, basePredicate)).Return(batch("p1", 4), nil).Once()

	c := newTestController(t, client)
	s, err := c.Load(context.Background())
	require.NoError(t, err)

	assert.True(t, s.HasMore)
	assert.Equal(t, 2, s.CurrentPage)
	assert.Len(t, s.Posts, 4)
	assert.False(t, s.Empty)
	client.AssertExpectations(t)
}

func TestController_Seed(t *testing.T) {
	c := newTestController(t, new(mocks.MockRepositoryClient))

	s := c.Seed(batch("p1", 4))
	assert.True(t, s.HasMore)
	assert.Equal(t, 2, s.CurrentPage)
	assert.Len(t, s.Posts, 4)

	s = c.Seed(domain.QueryResponse{})
	assert.False(t, s.HasMore)
	assert.True(t, s.Empty)
}

func TestController_LoadMoreAppends(t *testing.T) {
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, pageRequest(2, basePredicate)).Return(batch("p2", 4), nil).Once()
	client.On("Query", mock.Anything, pageRequest(3, basePredicate)).Return(batch("p3", 2), nil).Once()

	c := newTestController(t, client)
	c.Seed(batch("p1", 4))

	s, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Posts, 8)
	assert.Equal(t, 3, s.CurrentPage)
	assert.True(t, s.ShowScrollTop)

	s, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Posts, 10)
	assert.Equal(t, 4, s.CurrentPage)
	assert.Equal(t, []string{"p1-1", "p1-2", "p1-3", "p1-4", "p2-1", "p2-2", "p2-3", "p2-4", "p3-1", "p3-2"}, slugs(s.Posts))
	client.AssertExpectations(t)
}

func TestController_LoadMoreExhausts(t *testing.T) {
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, pageRequest(1, basePredicate)).Return(batch("p1", 4), nil).Once()
	client.On("Query", mock.Anything, pageRequest(2, basePredicate)).Return(domain.QueryResponse{}, nil).Once()

	c := newTestController(t, client)
	before, err := c.Load(context.Background())
	require.NoError(t, err)

	s, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, s.HasMore)
	assert.Equal(t, before.Posts, s.Posts)
	assert.Equal(t, 2, s.CurrentPage)

	// Exhausted: no further queries are sent.
	s, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, s.HasMore)
	client.AssertExpectations(t)
}

func TestController_LoadMoreUsesSearchTerm(t *testing.T) {
	search := basePredicate + `[fulltext(document,"go")]`
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, pageRequest(1, search)).Return(batch("s1", 4), nil).Once()
	client.On("Query", mock.Anything, pageRequest(2, search)).Return(batch("s2", 1), nil).Once()

	c := newTestController(t, client)
	_, err := c.Search(context.Background(), "go")
	require.NoError(t, err)

	s, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Posts, 5)
	assert.Equal(t, "go", s.SearchTerm)
	client.AssertExpectations(t)
}

func TestController_SearchReplacesPosts(t *testing.T) {
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, pageRequest(2, basePredicate)).Return(batch("p2", 4), nil).Once()
	client.On("Query", mock.Anything, pageRequest(1, basePredicate+`[fulltext(document,"rust")]`)).
		Return(batch("rust", 2), nil).Once()

	c := newTestController(t, client)
	c.Seed(batch("p1", 4))
	_, err := c.LoadMore(context.Background())
	require.NoError(t, err)

	s, err := c.Search(context.Background(), "rust")
	require.NoError(t, err)
	assert.Len(t, s.Posts, 2)
	assert.Equal(t, []string{"rust-1", "rust-2"}, slugs(s.Posts))
	assert.True(t, s.HasMore)
	assert.Equal(t, 2, s.CurrentPage)
	assert.Equal(t, "rust", s.SearchTerm)
	assert.False(t, s.IsSearching)
	client.AssertExpectations(t)
}

func TestController_SearchNoMatch(t *testing.T) {
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, pageRequest(1, basePredicate+`[fulltext(document,"zzz-no-match")]`)).
		Return(domain.QueryResponse{}, nil).Once()

	c := newTestController(t, client)
	c.Seed(batch("p1", 4))

	s, err := c.Search(context.Background(), "zzz-no-match")
	require.NoError(t, err)
	assert.Empty(t, s.Posts)
	assert.False(t, s.HasMore)
	assert.True(t, s.Empty)
}

func TestController_SearchEmptyClearsFilter(t *testing.T) {
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, pageRequest(1, basePredicate+`[fulltext(document,"rust")]`)).
		Return(batch("rust", 2), nil).Once()
	client.On("Query", mock.Anything, pageRequest(1, basePredicate)).Return(batch("all", 4), nil).Once()

	c := newTestController(t, client)
	_, err := c.Search(context.Background(), "rust")
	require.NoError(t, err)

	s, err := c.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", s.SearchTerm)
	assert.Len(t, s.Posts, 4)
	assert.True(t, s.HasMore)

	last := client.Calls[len(client.Calls)-1].Arguments.Get(1).(domain.QueryRequest)
	assert.NotContains(t, last.Predicate, "fulltext")
	client.AssertExpectations(t)
}

func TestController_FailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("connection reset")
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, pageRequest(2, basePredicate)).Return(nil, boom).Once()
	client.On("Query", mock.Anything, pageRequest(1, basePredicate+`[fulltext(document,"x")]`)).Return(nil, boom).Once()

	c := newTestController(t, client)
	before := c.Seed(batch("p1", 4))

	s, err := c.LoadMore(context.Background())
	assert.ErrorIs(t, err, domain.ErrRepositoryQuery)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, s)

	s, err = c.Search(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrRepositoryQuery)
	assert.Equal(t, before, s)
	client.AssertExpectations(t)
}

func TestController_InitialLoadFailure(t *testing.T) {
	client := new(mocks.MockRepositoryClient)
	client.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("unauthorized")).Once()

	c := newTestController(t, client)
	s, err := c.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrRepositoryQuery)
	assert.Empty(t, s.Posts)
	assert.Equal(t, 1, s.CurrentPage)
}

// blockingClient holds queries until released so tests can interleave operations.
// Requests registered with failOn return their error at once.
type blockingClient struct {
	mu       sync.Mutex
	started  chan domain.QueryRequest
	release  map[string]chan domain.QueryResponse
	failures map[string]error
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		started:  make(chan domain.QueryRequest, 8),
		release:  make(map[string]chan domain.QueryResponse),
		failures: make(map[string]error),
	}
}

func (b *blockingClient) failOn(req domain.QueryRequest, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[key(req)] = err
}

func key(req domain.QueryRequest) string {
	return fmt.Sprintf("%d|%s", req.Page, req.Predicate)
}

func (b *blockingClient) gate(req domain.QueryRequest) chan domain.QueryResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.release[key(req)]
	if !ok {
		ch = make(chan domain.QueryResponse, 1)
		b.release[key(req)] = ch
	}
	return ch
}

func (b *blockingClient) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	b.mu.Lock()
	err := b.failures[key(req)]
	b.mu.Unlock()
	if err != nil {
		return domain.QueryResponse{}, err
	}

	ch := b.gate(req)
	b.started <- req
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return domain.QueryResponse{}, ctx.Err()
	}
}

func TestController_LoadMoreIgnoredWhileSearching(t *testing.T) {
	client := newBlockingClient()
	c := newTestController(t, client)
	c.Seed(batch("p1", 4))

	searchReq := pageRequest(1, basePredicate+`[fulltext(document,"go")]`)
	done := make(chan Snapshot)
	go func() {
		s, _ := c.Search(context.Background(), "go")
		done <- s
	}()
	<-client.started

	s, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, s.IsSearching)
	assert.Len(t, s.Posts, 4)

	client.gate(searchReq) <- batch("go", 1)
	s = <-done
	assert.Len(t, s.Posts, 1)
	assert.False(t, s.IsSearching)
	assert.Len(t, client.started, 0, "load more must not reach the repository")
}

func TestController_OverlappingLoadMoreIsCoalesced(t *testing.T) {
	client := newBlockingClient()
	c := newTestController(t, client)
	c.Seed(batch("p1", 4))

	done := make(chan Snapshot)
	go func() {
		s, _ := c.LoadMore(context.Background())
		done <- s
	}()
	<-client.started

	s, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, s.IsLoadingMore)

	client.gate(pageRequest(2, basePredicate)) <- batch("p2", 4)
	s = <-done
	assert.Len(t, s.Posts, 8)
	assert.Equal(t, 3, s.CurrentPage)
	assert.False(t, s.IsLoadingMore)
	assert.Len(t, client.started, 0)
}

func TestController_StaleLoadMoreIsDiscarded(t *testing.T) {
	client := newBlockingClient()
	c := newTestController(t, client)
	c.Seed(batch("p1", 4))

	loadErr := make(chan error)
	go func() {
		_, err := c.LoadMore(context.Background())
		loadErr <- err
	}()
	<-client.started

	searchReq := pageRequest(1, basePredicate+`[fulltext(document,"go")]`)
	client.gate(searchReq) <- batch("go", 2)
	s, err := c.Search(context.Background(), "go")
	require.NoError(t, err)
	<-client.started
	assert.Len(t, s.Posts, 2)

	client.gate(pageRequest(2, basePredicate)) <- batch("stale", 4)
	assert.ErrorIs(t, <-loadErr, domain.ErrSuperseded)

	s = c.Snapshot()
	assert.Equal(t, []string{"go-1", "go-2"}, slugs(s.Posts))
	assert.Equal(t, 2, s.CurrentPage)
}

func TestController_LastSearchWins(t *testing.T) {
	client := newBlockingClient()
	c := newTestController(t, client)
	c.Seed(batch("p1", 4))

	firstErr := make(chan error)
	go func() {
		_, err := c.Search(context.Background(), "old")
		firstErr <- err
	}()
	<-client.started

	secondReq := pageRequest(1, basePredicate+`[fulltext(document,"new")]`)
	client.gate(secondReq) <- batch("new", 3)
	s, err := c.Search(context.Background(), "new")
	require.NoError(t, err)
	<-client.started
	assert.Equal(t, "new", s.SearchTerm)

	client.gate(pageRequest(1, basePredicate+`[fulltext(document,"old")]`)) <- batch("old", 1)
	assert.ErrorIs(t, <-firstErr, domain.ErrSuperseded)

	s = c.Snapshot()
	assert.Equal(t, "new", s.SearchTerm)
	assert.Len(t, s.Posts, 3)
	assert.False(t, s.IsSearching)
}

func TestController_FailedLoadClearsSupersededSearch(t *testing.T) {
	client := newBlockingClient()
	c := newTestController(t, client)
	c.Seed(batch("p1", 4))

	searchErr := make(chan error)
	go func() {
		_, err := c.Search(context.Background(), "go")
		searchErr <- err
	}()
	<-client.started

	client.failOn(pageRequest(1, basePredicate), errors.New("down"))
	_, err := c.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrRepositoryQuery)

	client.gate(pageRequest(1, basePredicate+`[fulltext(document,"go")]`)) <- batch("go", 1)
	assert.ErrorIs(t, <-searchErr, domain.ErrSuperseded)

	s := c.Snapshot()
	assert.False(t, s.IsSearching)
	assert.Equal(t, []string{"p1-1", "p1-2", "p1-3", "p1-4"}, slugs(s.Posts))

	client.gate(pageRequest(2, basePredicate)) <- batch("p2", 1)
	s, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	<-client.started
	assert.Len(t, s.Posts, 5)
	assert.Equal(t, 3, s.CurrentPage)
}

func TestController_FailedLoadClearsSupersededLoadMore(t *testing.T) {
	client := newBlockingClient()
	c := newTestController(t, client)
	c.Seed(batch("p1", 4))

	loadMoreErr := make(chan error)
	go func() {
		_, err := c.LoadMore(context.Background())
		loadMoreErr <- err
	}()
	<-client.started

	client.failOn(pageRequest(1, basePredicate), errors.New("down"))
	_, err := c.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrRepositoryQuery)

	client.gate(pageRequest(2, basePredicate)) <- batch("stale", 4)
	assert.ErrorIs(t, <-loadMoreErr, domain.ErrSuperseded)

	s := c.Snapshot()
	assert.False(t, s.IsLoadingMore)
	assert.Len(t, s.Posts, 4)

	client.gate(pageRequest(2, basePredicate)) <- batch("p2", 2)
	s, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	<-client.started
	assert.Equal(t, []string{"p1-1", "p1-2", "p1-3", "p1-4", "p2-1", "p2-2"}, slugs(s.Posts))
}

func TestController_LoadMoreAppendsTransformedBatch(t *testing.T) {
	client := new(mocks.MockRepositoryClient)
	tr := new(mocks.MockTransformer)

	first := batch("p1", 2)
	second := batch("p2", 3)
	client.On("Query", mock.Anything, pageRequest(1, basePredicate)).Return(first, nil).Once()
	client.On("Query", mock.Anything, pageRequest(2, basePredicate)).Return(second, nil).Once()

	firstPosts := []domain.Post{{Slug: "a"}, {Slug: "b"}}
	secondPosts := []domain.Post{{Slug: "c"}, {Slug: "d"}}
	tr.On("TransformBatch", first.Results).Return(firstPosts).Once()
	tr.On("TransformBatch", second.Results).Return(secondPosts).Once()

	c, err := NewController(client, tr, domain.DefaultQueryConfig())
	require.NoError(t, err)

	s, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, slugs(s.Posts))

	s, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	// A batch of three documents may yield fewer posts; paging follows the repository count.
	assert.Equal(t, []string{"a", "b", "c", "d"}, slugs(s.Posts))
	assert.Equal(t, 3, s.CurrentPage)
	assert.True(t, s.HasMore)

	client.AssertExpectations(t)
	tr.AssertExpectations(t)
}
