// Package mock holds a hand-rolled in-memory mq.ClientInterface for tests.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/polysense/pkg/mq"
)

// MockClient records every call it receives and answers with either the
// configured Func override or the configured error. The zero value works;
// NewMockClient additionally wires an open Consume channel.
type MockClient struct {
	mu sync.Mutex

	// PushFunc, when set, handles Push. Otherwise Push returns PushError.
	PushFunc  func(ctx context.Context, data []byte) error
	PushError error
	// PushCalls holds the arguments of every Push call.
	PushCalls []PushCall

	// UnsafePushFunc, when set, handles UnsafePush. Otherwise UnsafePush
	// returns UnsafePushError.
	UnsafePushFunc  func(ctx context.Context, data []byte) error
	UnsafePushError error
	// UnsafePushCalls holds the arguments of every UnsafePush call.
	UnsafePushCalls []UnsafePushCall

	// ConsumeFunc, when set, handles Consume. Otherwise Consume returns
	// ConsumeChannel and ConsumeError.
	ConsumeFunc    func() (<-chan amqp.Delivery, error)
	ConsumeChannel <-chan amqp.Delivery
	ConsumeError   error
	// ConsumeCalls counts Consume invocations.
	ConsumeCalls int

	// CloseFunc, when set, handles Close. Otherwise Close returns CloseError.
	CloseFunc  func() error
	CloseError error
	// CloseCalls counts Close invocations.
	CloseCalls int
}

// PushCall is one recorded Push invocation.
type PushCall struct {
	Ctx  context.Context
	Data []byte
}

// UnsafePushCall is one recorded UnsafePush invocation.
type UnsafePushCall struct {
	Ctx  context.Context
	Data []byte
}

// NewMockClient returns a mock that succeeds on every call and whose
// Consume channel is open but empty.
func NewMockClient() *MockClient {
	return &MockClient{
		PushCalls:       make([]PushCall, 0),
		UnsafePushCalls: make([]UnsafePushCall, 0),
		ConsumeChannel:  make(chan amqp.Delivery),
	}
}

// Push implements ClientInterface.
func (m *MockClient) Push(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = append(m.PushCalls, PushCall{
		Ctx:  ctx,
		Data: data,
	})

	if m.PushFunc != nil {
		return m.PushFunc(ctx, data)
	}
	return m.PushError
}

// UnsafePush implements ClientInterface.
func (m *MockClient) UnsafePush(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UnsafePushCalls = append(m.UnsafePushCalls, UnsafePushCall{
		Ctx:  ctx,
		Data: data,
	})

	if m.UnsafePushFunc != nil {
		return m.UnsafePushFunc(ctx, data)
	}
	return m.UnsafePushError
}

// Consume implements ClientInterface.
func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++

	if m.ConsumeFunc != nil {
		return m.ConsumeFunc()
	}
	return m.ConsumeChannel, m.ConsumeError
}

// Close implements ClientInterface.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return m.CloseError
}

// Reset drops all recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = make([]PushCall, 0)
	m.UnsafePushCalls = make([]UnsafePushCall, 0)
	m.ConsumeCalls = 0
	m.CloseCalls = 0
}

// PushCount reports how many Push calls have been recorded. It is safe
// to call while the client under test is still pushing.
func (m *MockClient) PushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PushCalls)
}

var _ mq.ClientInterface = (*MockClient)(nil)
