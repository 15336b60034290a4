package testing

import (
	"context"
	"sync"

	"github.com/aristath/riskgovernor/internal/domain"
)

// MockNotifier is a mock implementation of notify.Notifier for testing
type MockNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// SetError sets the error to return
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Sent returns the delivered notifications
func (m *MockNotifier) Sent() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.sent...)
}

// Channel returns the mock channel name
func (m *MockNotifier) Channel() string {
	return "mock"
}

// Notify records the notification
func (m *MockNotifier) Notify(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

// MockRiskEmitter is a mock implementation of events.RiskEmitter for testing
type MockRiskEmitter struct {
	mu      sync.Mutex
	emitted []domain.RiskEvent
	err     error
}

// NewMockRiskEmitter creates a new mock risk emitter
func NewMockRiskEmitter() *MockRiskEmitter {
	return &MockRiskEmitter{}
}

// SetError sets the error to return
func (m *MockRiskEmitter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Emitted returns the emitted risk events
func (m *MockRiskEmitter) Emitted() []domain.RiskEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RiskEvent(nil), m.emitted...)
}

// Channel returns the mock channel name
func (m *MockRiskEmitter) Channel() string {
	return "mock"
}

// EmitRiskEvent records the event
func (m *MockRiskEmitter) EmitRiskEvent(_ context.Context, e domain.RiskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.emitted = append(m.emitted, e)
	return nil
}

// MockPriceProvider is a mock implementation of marketdata.Provider for testing
type MockPriceProvider struct {
	mu     sync.RWMutex
	prices map[string][]float64
	err    error
}

// NewMockPriceProvider creates a new mock price provider
func NewMockPriceProvider() *MockPriceProvider {
	return &MockPriceProvider{prices: make(map[string][]float64)}
}

// SetPrices sets the prices returned for an asset
func (m *MockPriceProvider) SetPrices(asset string, prices []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[asset] = prices
}

// SetError sets the error to return
func (m *MockPriceProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prices returns the configured series, trimmed to the last window points
func (m *MockPriceProvider) Prices(_ context.Context, asset string, window int) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p := m.prices[asset]
	if window > 0 && len(p) > window {
		p = p[len(p)-window:]
	}
	return append([]float64(nil), p...), nil
}

// FlatPrices returns n prices at a constant level.
func FlatPrices(n int, level float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = level
	}
	return out
}

// TrendingPrices returns n prices growing geometrically by step per day.
func TrendingPrices(n int, start, step float64) []float64 {
	out := make([]float64, n)
	p := start
	for i := range out {
		out[i] = p
		p *= 1 + step
	}
	return out
}

// CrashPrices returns n prices that rise steadily and then fall by drop over
// the final quarter.
func CrashPrices(n int, start, drop float64) []float64 {
	out := TrendingPrices(n, start, 0.001)
	tail := n / 4
	if tail == 0 {
		return out
	}
	peak := out[n-tail-1]
	for i := 0; i < tail; i++ {
		out[n-tail+i] = peak * (1 - drop*float64(i+1)/float64(tail))
	}
	return out
}
