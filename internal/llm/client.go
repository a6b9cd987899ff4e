// Package llm provides the generator backends the agent loop talks to:
// Gemini, OpenAI-compatible endpoints and Ollama, behind one interface.
package llm

import (
	"context"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Client is the interface that all LLM providers must implement.
type Client interface {
	// Chat sends one chat request and returns the model's reply. It never
	// retries; a failed call surfaces as an error, usually a *ProviderError.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
