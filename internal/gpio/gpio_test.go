package gpio

import (
	"context"
	"testing"
	"time"

	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
)

// Run must return immediately when neither pin is configured, without
// touching the host GPIO subsystem (which is unavailable off-device and
// would otherwise make this test depend on hardware).
func TestRunNoopWhenUnconfigured(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out := make(chan protocol.ClientCommand, 1)
	done := make(chan struct{})
	go func() {
		Run(ctx, Config{}, &logging.NoOpLogger{}, out)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return immediately with no pins configured")
	}

	select {
	case cmd := <-out:
		t.Fatalf("expected no commands, got %+v", cmd)
	default:
	}
}
