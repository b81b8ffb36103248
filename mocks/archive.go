package mocks

import (
	"context"

	"github.com/kychandar/hammer/ds"
	"github.com/stretchr/testify/mock"
)

// MockArchiveStore is a mock implementation of services.ArchiveStore.
type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) Load(ctx context.Context) (*ds.Archive, error) {
	args := m.Called(ctx)
	a, _ := args.Get(0).(*ds.Archive)
	return a, args.Error(1)
}

func (m *MockArchiveStore) Save(ctx context.Context, archive *ds.Archive) error {
	args := m.Called(ctx, archive)
	return args.Error(0)
}

func (m *MockArchiveStore) Close() {
	m.Called()
}
