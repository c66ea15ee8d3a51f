package mocks

import (
	"context"

	"github.com/PostFeed/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockRepositoryClient struct {
	mock.Mock
}

var _ domain.RepositoryClient = (*MockRepositoryClient)(nil)

func (m *MockRepositoryClient) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return domain.QueryResponse{}, args.Error(1)
	}
	return args.Get(0).(domain.QueryResponse), args.Error(1)
}

type MockEventProducer struct {
	mock.Mock
}

var _ domain.EventProducer = (*MockEventProducer)(nil)

func (m *MockEventProducer) Publish(ctx context.Context, doc *domain.RawDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockEventProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}
