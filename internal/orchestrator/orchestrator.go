// Package orchestrator runs the central state machine: it owns the
// supervised voice-input/speech-rec/voice-output tasks, dispatches client
// commands and their events, and drives the single engine round trip that
// turns recognized text into a spoken reply.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/heyalice-ai/alicepi/internal/engine"
	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
	"github.com/heyalice-ai/alicepi/internal/session"
	"github.com/heyalice-ai/alicepi/internal/watchdog"
)

type internalEvent struct {
	generation uint64
	response   protocol.EngineResponse
	err        error
	startedAt  time.Time
}

type Orchestrator struct {
	cfg Config
	log logging.Logger

	state    protocol.RuntimeState
	micMuted bool
	lidOpen  bool

	generation session.Generation
	sess       *session.Session

	// speakingGeneration is the generation that owned the most recent
	// transition into StateSpeaking, so a "finished" event from a playback
	// that was since cancelled or superseded doesn't knock a newer Speaking
	// state back to Idle.
	speakingGeneration uint64

	eng engine.Engine

	voiceInput  *watchdog.CommandHandle[protocol.VoiceInputCommand]
	speechRec   *watchdog.CommandHandle[protocol.SpeechRecCommand]
	voiceOutput *watchdog.CommandHandle[protocol.VoiceOutputCommand]

	internalEvents chan internalEvent

	statusMu sync.RWMutex
	status   protocol.StatusSnapshot
}

func New(cfg Config, log logging.Logger, eng engine.Engine,
	voiceInput *watchdog.CommandHandle[protocol.VoiceInputCommand],
	speechRec *watchdog.CommandHandle[protocol.SpeechRecCommand],
	voiceOutput *watchdog.CommandHandle[protocol.VoiceOutputCommand],
) *Orchestrator {
	o := &Orchestrator{
		cfg:            cfg,
		log:            log,
		state:          protocol.StateIdle,
		micMuted:       true,
		lidOpen:        true,
		sess:           session.New(),
		eng:            eng,
		voiceInput:     voiceInput,
		speechRec:      speechRec,
		voiceOutput:    voiceOutput,
		internalEvents: make(chan internalEvent, 16),
	}
	o.status = protocol.StatusSnapshot{State: o.state, MicMuted: o.micMuted, LidOpen: o.lidOpen}
	return o
}

// Status returns the last published snapshot, used by the TCP server to
// answer a "status" request without a round trip through the select loop.
func (o *Orchestrator) Status() protocol.StatusSnapshot {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

// Run is the central 6-way select loop: client commands, voice-input
// events, speech-rec events, voice-output events, internal engine
// responses, and shutdown.
func (o *Orchestrator) Run(
	ctx context.Context,
	clientCmds <-chan protocol.ClientCommand,
	voiceEvents <-chan protocol.VoiceInputEvent,
	srEvents <-chan protocol.SpeechRecEvent,
	voiceOutputEvents <-chan protocol.VoiceOutputEvent,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case cmd, ok := <-clientCmds:
			if !ok {
				return
			}
			o.handleClientCommand(ctx, cmd)

		case event, ok := <-voiceEvents:
			if !ok {
				return
			}
			o.handleVoiceEvent(ctx, event)

		case event, ok := <-srEvents:
			if !ok {
				return
			}
			o.handleSpeechEvent(ctx, event)

		case event, ok := <-voiceOutputEvents:
			if !ok {
				return
			}
			o.handleVoiceOutputEvent(ctx, event)

		case event := <-o.internalEvents:
			o.handleInternalEvent(ctx, event)
		}
	}
}

func (o *Orchestrator) handleClientCommand(ctx context.Context, cmd protocol.ClientCommand) {
	switch cmd.Type {
	case protocol.CmdPing:
		o.log.Info("client ping")

	case protocol.CmdStatus:
		// Answered synchronously by the TCP server from Status(); never
		// reaches here.

	case protocol.CmdText:
		o.processText(ctx, cmd.Text)

	case protocol.CmdVoiceFile:
		if !o.micMuted {
			_ = o.voiceInput.Send(ctx, protocol.VoiceInputCommand{Kind: "inject_audio_file", Path: cmd.Path})
		} else {
			o.log.Info("ignoring voice input while mic muted")
		}

	case protocol.CmdAudioFile:
		o.enterSpeaking(o.generation.Current())
		_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "play_audio_file", Path: cmd.Path})

	case protocol.CmdAudioStreamStart:
		o.enterSpeaking(o.generation.Current())
		format := protocol.AudioStreamFmt{}
		if cmd.Format != nil {
			format = *cmd.Format
		}
		_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "start_stream", Format: format})

	case protocol.CmdAudioStreamChunk:
		_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "stream_chunk", Chunk: cmd.Data})

	case protocol.CmdAudioStreamEnd:
		_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "end_stream"})

	case protocol.CmdButtonPress:
		o.handleButtonPress(ctx)

	case protocol.CmdButtonRelease:
		o.handleButtonRelease(ctx)

	case protocol.CmdLidOpen:
		o.setLidOpen(true)
		o.sess = session.New()

	case protocol.CmdLidClose:
		o.setLidOpen(false)
		o.cancelSession(ctx)
		o.setMicMuted(true)
		o.setState(protocol.StateIdle)
	}
}

func (o *Orchestrator) handleButtonPress(ctx context.Context) {
	o.cancelSession(ctx)
	o.setMicMuted(false)
	o.setState(protocol.StateListening)
	_ = o.voiceInput.Send(ctx, protocol.VoiceInputCommand{Kind: "start_listening"})
}

func (o *Orchestrator) handleButtonRelease(ctx context.Context) {
	o.setMicMuted(true)
	o.setState(protocol.StateIdle)
	_ = o.voiceInput.Send(ctx, protocol.VoiceInputCommand{Kind: "stop_listening"})
}

func (o *Orchestrator) handleVoiceEvent(ctx context.Context, event protocol.VoiceInputEvent) {
	switch event.Kind {
	case "vad_speech":
		if o.state == protocol.StateIdle {
			o.setState(protocol.StateListening)
		}
	case "vad_silence":
		o.setMicMuted(true)
		o.setState(protocol.StateIdle)
		_ = o.voiceInput.Send(ctx, protocol.VoiceInputCommand{Kind: "stop_listening"})
	case "audio_chunk":
		_ = o.speechRec.Send(ctx, protocol.SpeechRecCommand{Kind: "audio_chunk", Chunk: event.Chunk})
	case "audio_ended":
		_ = o.speechRec.Send(ctx, protocol.SpeechRecCommand{Kind: "audio_ended"})
	}
}

func (o *Orchestrator) handleSpeechEvent(ctx context.Context, event protocol.SpeechRecEvent) {
	if event.IsFinal {
		o.processText(ctx, event.Text)
	}
}

// enterSpeaking transitions to StateSpeaking and records the generation
// this particular playback belongs to, so a later "finished" event can be
// matched against the right one.
func (o *Orchestrator) enterSpeaking(generation uint64) {
	o.speakingGeneration = generation
	o.setState(protocol.StateSpeaking)
}

// handleVoiceOutputEvent consumes voice-output's playback-completion
// signal. A "finished" event only returns the machine to Idle when it
// belongs to the generation that is still current and still owns the
// Speaking state; a stale event from a cancelled or superseded playback is
// dropped.
func (o *Orchestrator) handleVoiceOutputEvent(ctx context.Context, event protocol.VoiceOutputEvent) {
	switch event.Kind {
	case "finished":
		if o.state != protocol.StateSpeaking {
			return
		}
		if !o.generation.Matches(o.speakingGeneration) {
			o.log.Info("dropping stale voice output finished event")
			return
		}
		o.setState(protocol.StateIdle)
	}
}

func (o *Orchestrator) processText(ctx context.Context, text string) {
	if !o.lidOpen {
		o.log.Info("lid closed; ignoring text input")
		return
	}

	if o.sess.Expired(o.cfg.SessionTimeout) {
		o.log.Info("session timed out; starting new session")
		o.sess = session.New()
	}

	o.sess.AppendUser(text)
	o.setState(protocol.StateProcessing)

	generation := o.generation.Current()
	startedAt := time.Now()
	history := append([]protocol.ChatMessage(nil), o.sess.History...)
	sessionID := o.sess.ID

	go func() {
		resp, err := o.eng.Process(ctx, engine.Request{Text: text, History: history, SessionID: sessionID})
		select {
		case o.internalEvents <- internalEvent{generation: generation, response: resp, err: err, startedAt: startedAt}:
		case <-ctx.Done():
		}
	}()
}

func (o *Orchestrator) handleInternalEvent(ctx context.Context, event internalEvent) {
	if !o.generation.Matches(event.generation) {
		o.log.Info("dropping stale engine response")
		return
	}

	if event.err != nil {
		o.log.Warn("engine request failed", "error", event.err)
		o.setState(protocol.StateIdle)
		return
	}

	if event.response.AssistantText != nil {
		o.sess.AppendAssistant(*event.response.AssistantText)
	} else {
		o.sess.AppendAssistant("")
	}

	o.enterSpeaking(event.generation)

	if event.response.Audio.Full != nil {
		audio := *event.response.Audio.Full
		_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "play_audio", Audio: &audio})
		return
	}

	if event.response.Audio.Stream != nil {
		o.streamEngineAudio(ctx, event.generation, event.startedAt, *event.response.Audio.Stream)
	}
}

// streamEngineAudio forwards an engine's streamed audio to voice-output
// chunk by chunk, bailing out (and stopping playback) the instant the
// orchestrator's generation moves past the one this stream was started for.
func (o *Orchestrator) streamEngineAudio(ctx context.Context, generation uint64, startedAt time.Time, stream protocol.AudioStream) {
	go func() {
		if err := o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "start_stream", Format: stream.Format}); err != nil {
			return
		}

		loggedFirstChunk := false
		for chunk := range stream.Chunks {
			if !o.generation.Matches(generation) {
				_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "stop"})
				return
			}
			if chunk.Err != nil {
				o.log.Warn("engine stream failed", "error", chunk.Err)
				_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "stop"})
				return
			}
			if !loggedFirstChunk {
				o.log.Info("engine stream first chunk", "wait_ms", time.Since(startedAt).Milliseconds(), "bytes", len(chunk.Data))
				loggedFirstChunk = true
			}
			if err := o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "stream_chunk", Chunk: chunk.Data}); err != nil {
				o.log.Warn("voice output stream closed unexpectedly")
				return
			}
		}
		_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "end_stream"})
	}()
}

func (o *Orchestrator) cancelSession(ctx context.Context) {
	o.generation.Advance()
	_ = o.voiceOutput.Send(ctx, protocol.VoiceOutputCommand{Kind: "stop"})
	_ = o.speechRec.Send(ctx, protocol.SpeechRecCommand{Kind: "reset"})
	_ = o.voiceInput.Send(ctx, protocol.VoiceInputCommand{Kind: "stop_listening"})
}

func (o *Orchestrator) setState(next protocol.RuntimeState) {
	if o.state == next {
		return
	}
	o.state = next
	o.publishStatus()
	o.log.Info("state changed", "state", string(o.state))
}

func (o *Orchestrator) setMicMuted(muted bool) {
	if o.micMuted == muted {
		return
	}
	o.micMuted = muted
	o.publishStatus()
	o.log.Info("mic state changed", "mic_muted", o.micMuted)
}

func (o *Orchestrator) setLidOpen(open bool) {
	if o.lidOpen == open {
		return
	}
	o.lidOpen = open
	o.publishStatus()
	o.log.Info("lid state changed", "lid_open", o.lidOpen)
}

func (o *Orchestrator) publishStatus() {
	o.statusMu.Lock()
	o.status = protocol.StatusSnapshot{State: o.state, MicMuted: o.micMuted, LidOpen: o.lidOpen}
	o.statusMu.Unlock()
}
