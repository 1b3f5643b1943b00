package payment

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MockGateway — конфигурируемый шлюз для тестов. Ошибки из Errs отдаются по очереди,
// после их исчерпания возвращается Err.
type MockGateway struct {
	mu    sync.Mutex
	Errs  []error
	Err   error
	calls []string
}

// NewMockGateway возвращает шлюз, отвечающий ошибками errs по очереди.
func NewMockGateway(errs ...error) *MockGateway {
	return &MockGateway{Errs: errs}
}

// Charge возвращает следующую настроенную ошибку и запоминает вызов.
func (m *MockGateway) Charge(_ context.Context, orderID string, _ decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, orderID)
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		return err
	}
	return m.Err
}

// Calls возвращает число вызовов.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ Gateway = (*MockGateway)(nil)
