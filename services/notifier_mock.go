package services

import (
	"sync"

	"github.com/frostbean/freezedry-api/lifecycle"
	"github.com/frostbean/freezedry-api/models"
)

// RecordedNotification captures one Notify call made against the mock
type RecordedNotification struct {
	Event       lifecycle.NotifyEvent
	OrderNumber string
	Extra       map[string]string
}

// MockNotifier is a mock implementation of lifecycle.Notifier for testing.
// It records calls synchronously so tests can assert on them immediately.
type MockNotifier struct {
	mu sync.Mutex

	Notifications []RecordedNotification
	// FailAll makes every Notify call report Success=false
	FailAll bool
}

// NewMockNotifier creates a mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// SetAsMockForTesting sets this mock as the global notifier instance
func (m *MockNotifier) SetAsMockForTesting() {
	SetNotifier(m)
}

// Notify records the call
func (m *MockNotifier) Notify(event lifecycle.NotifyEvent, order *models.Order, extra map[string]string) lifecycle.NotifyResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, RecordedNotification{
		Event:       event,
		OrderNumber: order.OrderNumber,
		Extra:       extra,
	})
	return lifecycle.NotifyResult{Success: !m.FailAll}
}

// Events returns the recorded event types in order
func (m *MockNotifier) Events() []lifecycle.NotifyEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]lifecycle.NotifyEvent, 0, len(m.Notifications))
	for _, n := range m.Notifications {
		events = append(events, n.Event)
	}
	return events
}
