package voiceinput

import (
	"time"

	"github.com/heyalice-ai/alicepi/internal/protocol"
)

type trackerState int

const (
	trackerSilence trackerState = iota
	trackerSpeech
	trackerHangover
)

// Tracker implements the Silence/Speech/Hangover state machine described in
// the voice-input component design: it consumes a per-chunk speech/silence
// classification and decides which VoiceInputEvents to emit.
type Tracker struct {
	hangover   time.Duration
	grace      time.Duration
	state      trackerState
	lastSpeech time.Time
	graceUntil time.Time
}

func NewTracker(hangover, grace time.Duration) *Tracker {
	return &Tracker{hangover: hangover, grace: grace, state: trackerSilence}
}

// BeginListen resets the tracker and starts the start-listen grace window,
// called whenever voice-input transitions into an actively listening mode.
func (t *Tracker) BeginListen() {
	t.state = trackerSilence
	t.lastSpeech = time.Time{}
	t.graceUntil = time.Now().Add(t.grace)
}

// Observe classifies one chunk's worth of audio and returns the events to
// emit, in order. The chunk itself is always included as an AudioChunk
// event whenever the tracker is not firmly in Silence.
func (t *Tracker) Observe(chunk []byte, isSpeech bool) []protocol.VoiceInputEvent {
	now := time.Now()
	var events []protocol.VoiceInputEvent

	if isSpeech {
		if t.state != trackerSpeech {
			events = append(events, protocol.EvVadSpeech())
		}
		t.state = trackerSpeech
		t.lastSpeech = now
		events = append(events, protocol.EvAudioChunk(chunk))
		return events
	}

	if now.Before(t.graceUntil) {
		t.state = trackerHangover
		events = append(events, protocol.EvAudioChunk(chunk))
		return events
	}

	if t.state == trackerSpeech || t.state == trackerHangover {
		if now.Sub(t.lastSpeech) < t.hangover {
			t.state = trackerHangover
			events = append(events, protocol.EvAudioChunk(chunk))
			return events
		}
	}

	if t.state != trackerSilence {
		events = append(events, protocol.EvAudioEnded(), protocol.EvVadSilence())
		t.state = trackerSilence
	}
	return events
}

// ForceSilence is called on shutdown/stop: if the tracker was not already
// in Silence, it emits the same end-of-utterance pair Observe would.
func (t *Tracker) ForceSilence() []protocol.VoiceInputEvent {
	if t.state == trackerSilence {
		return nil
	}
	t.state = trackerSilence
	return []protocol.VoiceInputEvent{protocol.EvAudioEnded(), protocol.EvVadSilence()}
}
