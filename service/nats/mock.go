package nats

import (
	"context"
	"sync"
)

// MockPublisher records published events for tests.
type MockPublisher struct {
	mu     sync.Mutex
	Events []*RedistributionEvent
	Err    error
}

var _ Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) PublishRedistribution(ctx context.Context, event *RedistributionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() {}

// Published returns a copy of the events recorded so far.
func (m *MockPublisher) Published() []*RedistributionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RedistributionEvent, len(m.Events))
	copy(out, m.Events)
	return out
}
