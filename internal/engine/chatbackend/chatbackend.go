// Package chatbackend adapts the teacher's per-provider LLM clients into
// pluggable chat completions for the split engine, so the local-hardware
// path is not limited to a single OpenAI-shaped endpoint.
package chatbackend

import (
	"context"

	"github.com/heyalice-ai/alicepi/internal/protocol"
)

// Backend is a chat-completion provider: history in, assistant text out.
type Backend interface {
	Complete(ctx context.Context, messages []protocol.ChatMessage) (string, error)
	Name() string
}

// FromEnv selects a backend by the LLM_BACKEND env var ("anthropic",
// "google", "groq", "openai"), or nil if unset/unrecognized, in which case
// the split engine falls back to its own chat-completions HTTP client.
func FromEnv(name, apiKey, model string) Backend {
	switch name {
	case "anthropic":
		return NewAnthropic(apiKey, model)
	case "google":
		return NewGoogle(apiKey, model)
	case "groq":
		return NewGroq(apiKey, model)
	case "openai":
		return NewOpenAI(apiKey, model)
	default:
		return nil
	}
}
