package assistant

import (
	"context"
	"sync"
)

// MockLLM answers with a fixed reply and remembers the prompts it saw. It
// never calls an external model.
type MockLLM struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []Prompt
}

func (m *MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply == "" {
		return "general", nil
	}
	return m.Reply, nil
}

// SetReply changes the reply while the mock may be in use.
func (m *MockLLM) SetReply(reply string) {
	m.mu.Lock()
	m.Reply = reply
	m.mu.Unlock()
}

// Prompts returns the prompts received so far.
func (m *MockLLM) Prompts() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.prompts...)
}
