package mocks

import (
	"context"

	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	"github.com/stretchr/testify/mock"
)

// MockSession is a mock implementation of services.Session.
type MockSession struct {
	mock.Mock
}

func (m *MockSession) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSession) DeclareSubscriber(ctx context.Context, keyExpr string, origin ds.Locality) (services.Subscriber, error) {
	args := m.Called(ctx, keyExpr, origin)
	sub, _ := args.Get(0).(services.Subscriber)
	return sub, args.Error(1)
}

func (m *MockSession) Put(ctx context.Context, req ds.PutRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockSession) Get(ctx context.Context, req ds.QueryRequest) (<-chan ds.Reply, error) {
	args := m.Called(ctx, req)
	replies, _ := args.Get(0).(<-chan ds.Reply)
	return replies, args.Error(1)
}

func (m *MockSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSubscriber hands out a channel the test feeds directly.
type MockSubscriber struct {
	mock.Mock
	Ch chan ds.Sample
}

func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{Ch: make(chan ds.Sample, 16)}
}

func (m *MockSubscriber) Samples() <-chan ds.Sample {
	return m.Ch
}

func (m *MockSubscriber) Undeclare() error {
	args := m.Called()
	return args.Error(0)
}
