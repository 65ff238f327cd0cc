package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/kyleking/energy-expert/internal/schema"
)

// ScriptedReply is one canned completion: either Text or Err
type ScriptedReply struct {
	Text string
	Err  error
}

// MockCompleter replays scripted completions in order and records every prompt
type MockCompleter struct {
	mu sync.Mutex

	name     string
	replies  []ScriptedReply
	fallback *ScriptedReply
	prompts  []string
	block    bool
}

// CompleterOption is a functional option for configuring MockCompleter
type CompleterOption func(*MockCompleter)

// WithReplies queues completion texts returned in order
func WithReplies(texts ...string) CompleterOption {
	return func(m *MockCompleter) {
		for _, text := range texts {
			m.replies = append(m.replies, ScriptedReply{Text: text})
		}
	}
}

// WithReplyError queues an error as the next reply
func WithReplyError(err error) CompleterOption {
	return func(m *MockCompleter) {
		m.replies = append(m.replies, ScriptedReply{Err: err})
	}
}

// WithDefaultReply is returned once the queue is exhausted
func WithDefaultReply(text string) CompleterOption {
	return func(m *MockCompleter) {
		m.fallback = &ScriptedReply{Text: text}
	}
}

// WithBlocking makes Complete wait for context cancellation
func WithBlocking() CompleterOption {
	return func(m *MockCompleter) {
		m.block = true
	}
}

// WithName sets the value reported by Name
func WithName(name string) CompleterOption {
	return func(m *MockCompleter) {
		m.name = name
	}
}

// NewMockCompleter creates a new scripted completer with the given options
func NewMockCompleter(opts ...CompleterOption) *MockCompleter {
	mock := &MockCompleter{name: "mock/scripted"}

	for _, opt := range opts {
		opt(mock)
	}

	return mock
}

// Complete returns the next scripted reply
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	block := m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.replies) == 0 {
		if m.fallback != nil {
			return m.fallback.Text, m.fallback.Err
		}

		return "", fmt.Errorf("mock completer: no scripted reply for call %d", len(m.prompts))
	}

	reply := m.replies[0]
	m.replies = m.replies[1:]

	return reply.Text, reply.Err
}

// Name returns the configured name
func (m *MockCompleter) Name() string {
	return m.name
}

// Prompts returns a copy of every prompt received so far
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.prompts...)
}

// CallCount returns the number of Complete calls
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.prompts)
}

// MockCatalog returns a fixed descriptor or error and counts calls
type MockCatalog struct {
	mu sync.Mutex

	schemas []*schema.Descriptor
	err     error
	calls   int
}

// NewMockCatalog serves the given descriptors in order, repeating the last
func NewMockCatalog(schemas ...*schema.Descriptor) *MockCatalog {
	return &MockCatalog{schemas: schemas}
}

// NewFailingCatalog always fails with err
func NewFailingCatalog(err error) *MockCatalog {
	return &MockCatalog{err: err}
}

// FetchSchema implements schema.Catalog
func (m *MockCatalog) FetchSchema(_ context.Context) (*schema.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	if len(m.schemas) == 0 {
		return &schema.Descriptor{}, nil
	}

	idx := m.calls - 1
	if idx >= len(m.schemas) {
		idx = len(m.schemas) - 1
	}

	return m.schemas[idx], nil
}

// CallCount returns the number of FetchSchema calls
func (m *MockCatalog) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}
