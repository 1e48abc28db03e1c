package nats

import (
	"context"
	"sync"
)

// MockPublisher records session events in memory. FailWith makes every
// following publish return err (nil clears it).
type MockPublisher struct {
	mu     sync.Mutex
	events []*SessionEvent
	err    error
	closed bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrPublisherClosed
	}
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Published returns the recorded events for sessionID, in publish order.
// An empty sessionID returns all of them.
func (m *MockPublisher) Published(sessionID string) []*SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*SessionEvent
	for _, ev := range m.events {
		if sessionID == "" || ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out
}

// PublishedTypes lists the event types recorded so far.
func (m *MockPublisher) PublishedTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.events))
	for i, ev := range m.events {
		types[i] = ev.Type
	}
	return types
}
