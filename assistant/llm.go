// Package assistant asks a language model for help with questions.
package assistant

import (
	"context"
	"fmt"
	"strings"
)

// LLMClient abstracts the model so it can be swapped or mocked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings configures a concrete client.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewLLM builds the client named by settings.Provider. Provider "openai"
// also covers OpenAI compatible endpoints through BaseURL.
func NewLLM(settings LLMSettings) (LLMClient, error) {
	switch strings.ToLower(settings.Provider) {
	case "", "openai":
		return NewOpenAILLM(settings)
	case "mock":
		return &MockLLM{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", settings.Provider)
	}
}
