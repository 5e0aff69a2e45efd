package notify

import "sync"

// MockNotifier records events for tests.
type MockNotifier struct {
	mu     sync.Mutex
	events []Event
}

// Notify records the event.
func (m *MockNotifier) Notify(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns all recorded events in order.
func (m *MockNotifier) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Kinds returns the recorded event kinds in order.
func (m *MockNotifier) Kinds() []Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]Kind, len(m.events))
	for i, ev := range m.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Verify MockNotifier implements Notifier at compile time.
var _ Notifier = (*MockNotifier)(nil)
