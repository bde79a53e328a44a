package dialer

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scriptable Provider for tests.
type Mock struct {
	mu sync.Mutex

	// SubmitErr, when set, fails every Submit with that error.
	SubmitErr error

	// Statuses maps external id to the event GetStatus returns.
	Statuses map[string]StatusEvent

	// Submitted records every accepted submission in order.
	Submitted []SubmitRequest

	nextID int
}

func NewMock() *Mock {
	return &Mock{Statuses: map[string]StatusEvent{}}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) HealthCheck(ctx context.Context) error { return nil }

func (m *Mock) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	m.nextID++
	id := fmt.Sprintf("mock-dial-%d", m.nextID)
	m.Submitted = append(m.Submitted, req)
	m.Statuses[id] = StatusEvent{ExternalID: id, ProviderStatus: "queued"}
	return id, nil
}

func (m *Mock) GetStatus(ctx context.Context, externalID string) (StatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.Statuses[externalID]
	if !ok {
		return StatusEvent{}, ErrUnknownDial
	}
	return ev, nil
}

// SetStatus scripts the event returned for an external id.
func (m *Mock) SetStatus(externalID string, ev StatusEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ExternalID = externalID
	m.Statuses[externalID] = ev
}

// SubmitCount returns how many submissions were accepted.
func (m *Mock) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Submitted)
}
