// Package engine turns recognized text into an assistant reply plus audio,
// through one of two interchangeable backends: a split local LLM+TTS pair,
// or a single cloud endpoint that returns the reply as audio only, in one
// round trip.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/heyalice-ai/alicepi/internal/protocol"
)

var (
	ErrLLMRequest       = errors.New("llm request failed")
	ErrTTSRequest       = errors.New("tts request failed")
	ErrCloudRequest     = errors.New("cloud request failed")
	ErrInvalidResponse  = errors.New("invalid engine response")
)

// Engine is the pluggable text-and-history-in, reply-and-audio-out backend.
type Engine interface {
	Process(ctx context.Context, req Request) (protocol.EngineResponse, error)
}

type Request struct {
	Text      string
	History   []protocol.ChatMessage
	SessionID string
}

func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
