package statusled

import (
	"context"
	"testing"
	"time"

	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
)

// Run must return immediately when no pin is configured, without touching
// the host GPIO subsystem (unavailable off-device).
func TestRunNoopWhenUnconfigured(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		Run(ctx, 0, &logging.NoOpLogger{}, func() protocol.StatusSnapshot { return protocol.StatusSnapshot{} })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return immediately with pin 0")
	}
}
