package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// MockProvider is a mock implementation of CompletionProvider for testing
type MockProvider struct {
	GenerateFunc func(ctx context.Context, messages []chat.ChatMessage, tools []chat.ToolDefinition) (*chat.Completion, error)
	PingFunc     func(ctx context.Context) error

	// Track calls for testing
	GenerateCalls []GenerateCall
	PingCalls     int
	CloseCalls    int

	queue []*chat.Completion
	mu    sync.Mutex // protects all fields above
}

type GenerateCall struct {
	Messages []chat.ChatMessage
	Tools    []chat.ToolDefinition
}

var _ CompletionProvider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		GenerateCalls: make([]GenerateCall, 0),
	}
}

// Generate returns queued completions first, then GenerateFunc's result,
// then a fixed mock response.
func (m *MockProvider) Generate(ctx context.Context, messages []chat.ChatMessage, tools []chat.ToolDefinition) (*chat.Completion, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{
		Messages: append([]chat.ChatMessage(nil), messages...),
		Tools:    tools,
	})
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return next, nil
	}
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, tools)
	}
	return &chat.Completion{Content: "Mock response"}, nil
}

// Ping mocks a reachability check
func (m *MockProvider) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.PingCalls++
	fn := m.PingFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// Close records the release
func (m *MockProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// QueueCompletions appends completions returned, in order, by the next
// Generate calls.
func (m *MockProvider) QueueCompletions(completions ...*chat.Completion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, completions...)
}

// QueueText is QueueCompletions for plain text replies.
func (m *MockProvider) QueueText(texts ...string) {
	for _, t := range texts {
		m.QueueCompletions(&chat.Completion{Content: t})
	}
}

// SetGenerateError makes every unqueued Generate call fail with err
func (m *MockProvider) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, messages []chat.ChatMessage, tools []chat.ToolDefinition) (*chat.Completion, error) {
		return nil, err
	}
}

// Calls returns a copy of the recorded Generate calls
func (m *MockProvider) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.GenerateCalls...)
}

// Closed reports how many times Close was called
func (m *MockProvider) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseCalls
}

// Reset clears all call tracking and queued completions
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = make([]GenerateCall, 0)
	m.PingCalls = 0
	m.CloseCalls = 0
	m.queue = nil
}
