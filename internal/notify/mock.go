package notify

import (
	"context"
	"sync"
)

// Message is one captured publication.
type Message struct {
	Topic   string
	Payload []byte
}

// MockPublisher records publications for assertions in tests.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []Message
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) Captured() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.Messages))
	copy(out, m.Messages)
	return out
}
