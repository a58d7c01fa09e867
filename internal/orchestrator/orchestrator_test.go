package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/heyalice-ai/alicepi/internal/engine"
	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
	"github.com/heyalice-ai/alicepi/internal/watchdog"
)

type fakeEngine struct {
	resp protocol.EngineResponse
	err  error
}

func (f *fakeEngine) Process(ctx context.Context, req engine.Request) (protocol.EngineResponse, error) {
	return f.resp, f.err
}

func newTestOrchestrator(eng engine.Engine) (o *Orchestrator, viCh chan protocol.VoiceInputCommand, srCh chan protocol.SpeechRecCommand, voCh chan protocol.VoiceOutputCommand) {
	viCh = make(chan protocol.VoiceInputCommand, 8)
	srCh = make(chan protocol.SpeechRecCommand, 8)
	voCh = make(chan protocol.VoiceOutputCommand, 8)

	cfg := Config{SessionTimeout: time.Minute}
	o = New(cfg, &logging.NoOpLogger{}, eng,
		watchdog.NewCommandHandle(viCh),
		watchdog.NewCommandHandle(srCh),
		watchdog.NewCommandHandle(voCh),
	)
	return o, viCh, srCh, voCh
}

func recvCmd[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for command")
	}
	var zero T
	return zero
}

func TestButtonPressStartsListening(t *testing.T) {
	o, viCh, _, _ := newTestOrchestrator(&fakeEngine{})
	ctx := context.Background()

	o.handleButtonPress(ctx)

	if o.Status().State != protocol.StateListening {
		t.Fatalf("expected Listening state, got %s", o.Status().State)
	}
	if o.Status().MicMuted {
		t.Fatalf("expected mic unmuted after button press")
	}

	// cancelSession's stop_listening is queued ahead of start_listening.
	cmd := recvCmd(t, viCh)
	if cmd.Kind != "stop_listening" {
		t.Fatalf("expected stop_listening command first, got %q", cmd.Kind)
	}
	cmd = recvCmd(t, viCh)
	if cmd.Kind != "start_listening" {
		t.Fatalf("expected start_listening command, got %q", cmd.Kind)
	}
}

func TestButtonReleaseStopsListening(t *testing.T) {
	o, viCh, _, _ := newTestOrchestrator(&fakeEngine{})
	ctx := context.Background()

	o.handleButtonPress(ctx)
	<-viCh // the cancelSession "stop_listening"
	<-viCh // the "start_listening"

	o.handleButtonRelease(ctx)

	if o.Status().State != protocol.StateIdle {
		t.Fatalf("expected Idle state after release, got %s", o.Status().State)
	}
	if !o.Status().MicMuted {
		t.Fatalf("expected mic muted after release")
	}

	cmd := recvCmd(t, viCh)
	if cmd.Kind != "stop_listening" {
		t.Fatalf("expected stop_listening command, got %q", cmd.Kind)
	}
}

func TestProcessTextDispatchesFullAudio(t *testing.T) {
	text := "hello"
	audio := protocol.PcmOutput([]byte{1, 2, 3, 4}, 16000, 1)
	eng := &fakeEngine{resp: protocol.EngineResponse{AssistantText: &text, Audio: protocol.EngineAudio{Full: &audio}}}
	o, _, _, voCh := newTestOrchestrator(eng)
	ctx := context.Background()

	o.processText(ctx, "hi there")

	ev := recvCmd(t, o.internalEvents)
	o.handleInternalEvent(ctx, ev)

	if o.Status().State != protocol.StateSpeaking {
		t.Fatalf("expected Speaking state, got %s", o.Status().State)
	}

	cmd := recvCmd(t, voCh)
	if cmd.Kind != "play_audio" {
		t.Fatalf("expected play_audio command, got %q", cmd.Kind)
	}

	if len(o.sess.History) != 2 {
		t.Fatalf("expected user+assistant history entries, got %d", len(o.sess.History))
	}
}

func TestStaleEngineResponseIsDropped(t *testing.T) {
	text := "late"
	eng := &fakeEngine{resp: protocol.EngineResponse{AssistantText: &text}}
	o, _, _, voCh := newTestOrchestrator(eng)
	ctx := context.Background()

	o.processText(ctx, "first")
	ev := recvCmd(t, o.internalEvents)

	// A cancellation (e.g. a new button press) advances the generation
	// before the stale response is handled.
	o.cancelSession(ctx)
	<-voCh // the cancelSession "stop"

	o.handleInternalEvent(ctx, ev)

	select {
	case cmd := <-voCh:
		t.Fatalf("expected no further voice-output command for a stale response, got %q", cmd.Kind)
	case <-time.After(50 * time.Millisecond):
	}

	if len(o.sess.History) != 1 {
		t.Fatalf("expected the stale response to leave history untouched, got %d entries", len(o.sess.History))
	}
}

func TestLidCloseCancelsAndMutes(t *testing.T) {
	o, viCh, srCh, voCh := newTestOrchestrator(&fakeEngine{})
	ctx := context.Background()

	o.handleButtonPress(ctx)
	<-viCh

	o.handleClientCommand(ctx, protocol.ClientCommand{Type: protocol.CmdLidClose})

	if o.Status().LidOpen {
		t.Fatalf("expected lid closed")
	}
	if o.Status().State != protocol.StateIdle {
		t.Fatalf("expected Idle state after lid close, got %s", o.Status().State)
	}
	if !o.Status().MicMuted {
		t.Fatalf("expected mic muted after lid close")
	}

	<-voCh
	<-srCh
	<-viCh
}

func TestFinishedEventReturnsToIdle(t *testing.T) {
	text := "hello"
	audio := protocol.PcmOutput([]byte{1, 2, 3, 4}, 16000, 1)
	eng := &fakeEngine{resp: protocol.EngineResponse{AssistantText: &text, Audio: protocol.EngineAudio{Full: &audio}}}
	o, _, _, voCh := newTestOrchestrator(eng)
	ctx := context.Background()

	o.processText(ctx, "hi there")
	ev := recvCmd(t, o.internalEvents)
	o.handleInternalEvent(ctx, ev)
	<-voCh

	o.handleVoiceOutputEvent(ctx, protocol.VoiceOutputEvent{Kind: "finished"})

	if o.Status().State != protocol.StateIdle {
		t.Fatalf("expected Idle state after finished event, got %s", o.Status().State)
	}
}

func TestStaleFinishedEventIgnored(t *testing.T) {
	text := "hello"
	audio := protocol.PcmOutput([]byte{1, 2, 3, 4}, 16000, 1)
	eng := &fakeEngine{resp: protocol.EngineResponse{AssistantText: &text, Audio: protocol.EngineAudio{Full: &audio}}}
	o, _, _, voCh := newTestOrchestrator(eng)
	ctx := context.Background()

	o.processText(ctx, "hi there")
	ev := recvCmd(t, o.internalEvents)
	o.handleInternalEvent(ctx, ev)
	<-voCh

	staleGeneration := o.speakingGeneration

	// Something else (e.g. a button press) cancels the session, advancing
	// the generation while the state machine is still Speaking.
	o.cancelSession(ctx)
	<-voCh // the cancelSession "stop"

	o.handleVoiceOutputEvent(ctx, protocol.VoiceOutputEvent{Kind: "finished"})

	if o.generation.Matches(staleGeneration) {
		t.Fatalf("expected generation to have advanced past the stale one")
	}
	if o.Status().State == protocol.StateIdle {
		t.Fatalf("a stale finished event should not have touched the state machine")
	}
}

func TestVoiceFileIgnoredWhileMicMuted(t *testing.T) {
	o, viCh, _, _ := newTestOrchestrator(&fakeEngine{})
	ctx := context.Background()

	o.handleClientCommand(ctx, protocol.ClientCommand{Type: protocol.CmdVoiceFile, Path: "/tmp/x.wav"})

	select {
	case <-viCh:
		t.Fatalf("expected no voice-input command while mic muted")
	case <-time.After(50 * time.Millisecond):
	}
}
