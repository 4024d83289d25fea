package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/queueit/backend/internal/catalog"
)

// MockResolver is a mock implementation of catalog.Resolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, ref catalog.SongRef) (catalog.Song, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(catalog.Song), args.Error(1)
}
