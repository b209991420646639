package provider

import (
	"context"
	"sync"
)

// MockSession is an in-process Session for tests and for running the
// bridge without backend credentials.
type MockSession struct {
	mu        sync.Mutex
	events    chan Event
	closed    bool
	SentAudio [][]byte
	Created   []string
	Cancelled []string
}

func NewMockSession() *MockSession {
	return &MockSession{events: make(chan Event, 64)}
}

// Emit queues an event for the consumer, as if the backend sent it.
func (m *MockSession) Emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.events <- ev
}

func (m *MockSession) SendAudio(_ context.Context, pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionClosed
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	m.SentAudio = append(m.SentAudio, buf)
	return nil
}

func (m *MockSession) CreateResponse(_ context.Context, instructions string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionClosed
	}
	m.Created = append(m.Created, instructions)
	return nil
}

func (m *MockSession) CancelResponse(_ context.Context, responseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionClosed
	}
	m.Cancelled = append(m.Cancelled, responseID)
	return nil
}

func (m *MockSession) Events() <-chan Event { return m.events }

func (m *MockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// CreatedCount returns how many response requests were issued.
func (m *MockSession) CreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created)
}

// CancelledIDs returns a copy of the cancelled response ids.
func (m *MockSession) CancelledIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Cancelled...)
}
