// Package session owns the conversation history and the generation-based
// cancellation token. Both are mutated exclusively by the orchestrator.
package session

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/heyalice-ai/alicepi/internal/protocol"
)

// AssistantPlaceholder is stored when the engine returns audio with no
// accompanying text, so the user/assistant pair stays aligned.
const AssistantPlaceholder = "[voice response]"

type Session struct {
	ID            string
	History       []protocol.ChatMessage
	LastMessageAt time.Time
	hasMessage    bool
}

func New() *Session {
	return &Session{ID: uuid.NewString()}
}

func (s *Session) AppendUser(text string) {
	s.History = append(s.History, protocol.ChatMessage{Role: "user", Content: text})
	s.LastMessageAt = time.Now()
	s.hasMessage = true
}

func (s *Session) AppendAssistant(text string) {
	if text == "" {
		text = AssistantPlaceholder
	}
	s.History = append(s.History, protocol.ChatMessage{Role: "assistant", Content: text})
}

// Expired reports whether the session should roll over before accepting a
// new user message, per the lazily-checked SESSION_TIMEOUT policy.
func (s *Session) Expired(timeout time.Duration) bool {
	if !s.hasMessage {
		return false
	}
	return time.Since(s.LastMessageAt) >= timeout
}

// Generation is the orchestrator's monotonically increasing cancellation
// token. Detached request-scoped work captures a value at spawn and
// compares it against Current() at every send boundary; a mismatch means
// the work is stale and must be discarded without side effects.
type Generation struct {
	value atomic.Uint64
}

func (g *Generation) Current() uint64 {
	return g.value.Load()
}

// Advance increments the counter and returns the new value. Callers that
// cancel in-flight work must call Advance before issuing the corresponding
// Stop/Reset fanout, so racing work observes the new value first.
func (g *Generation) Advance() uint64 {
	return g.value.Add(1)
}

func (g *Generation) Matches(captured uint64) bool {
	return g.value.Load() == captured
}
