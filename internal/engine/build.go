package engine

import (
	"os"
	"strings"

	"github.com/heyalice-ai/alicepi/internal/engine/chatbackend"
	"github.com/heyalice-ai/alicepi/internal/logging"
)

// Build selects and constructs an Engine from ORCHESTRATOR_MODE ("local" or
// "cloud", default "local").
func Build(log logging.Logger) Engine {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("ORCHESTRATOR_MODE")))
	if mode == "cloud" {
		return NewCloudEngine(CloudConfigFromEnv(), log)
	}

	split := NewSplitEngine(SplitConfigFromEnv(), log)
	if backend := chatbackend.FromEnv(os.Getenv("LLM_BACKEND"), os.Getenv("LLM_API_KEY"), os.Getenv("LLM_MODEL_NAME")); backend != nil {
		split = split.WithChatBackend(backend)
	}
	return split
}
