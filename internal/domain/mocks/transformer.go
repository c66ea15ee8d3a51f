package mocks

import (
	"github.com/PostFeed/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockTransformer struct {
	mock.Mock
}

func (m *MockTransformer) Transform(doc domain.RawDocument, position int) (domain.Post, error) {
	args := m.Called(doc, position)
	return args.Get(0).(domain.Post), args.Error(1)
}

func (m *MockTransformer) TransformBatch(docs []domain.RawDocument) []domain.Post {
	args := m.Called(docs)

	// Handle nil posts
	var posts []domain.Post
	if args.Get(0) != nil {
		posts = args.Get(0).([]domain.Post)
	}
	return posts
}
