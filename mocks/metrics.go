package mocks

import (
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockMetricsRegistry is a mock implementation of services.MetricsRegistry.
type MockMetricsRegistry struct {
	mock.Mock
}

func (m *MockMetricsRegistry) GetHandler() http.Handler {
	args := m.Called()
	h, _ := args.Get(0).(http.Handler)
	return h
}

func (m *MockMetricsRegistry) IncCommand(kind string) {
	m.Called(kind)
}

func (m *MockMetricsRegistry) IncSample(keyExpr string) {
	m.Called(keyExpr)
}

func (m *MockMetricsRegistry) ObservePublish(started time.Time, success bool) {
	m.Called(started, success)
}

func (m *MockMetricsRegistry) IncQueryReply(ok bool) {
	m.Called(ok)
}

func (m *MockMetricsRegistry) SetActiveSubscriptions(n int) {
	m.Called(n)
}

func (m *MockMetricsRegistry) SetSessionOpen(open bool) {
	m.Called(open)
}

func (m *MockMetricsRegistry) IncWsConnectionCount() {
	m.Called()
}

func (m *MockMetricsRegistry) DecWsConnectionCount() {
	m.Called()
}
