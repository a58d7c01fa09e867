// Package protocol holds the tagged values exchanged over the TCP line
// server and between the orchestrator and its supervised tasks.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ByteArray is raw PCM bytes encoded on the wire as a JSON array of numbers
// (matching the original serde Vec<u8> wire shape), not Go's default
// base64-string encoding of []byte.
type ByteArray []byte

func (b ByteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(v)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (b *ByteArray) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var nums []uint8
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	*b = ByteArray(nums)
	return nil
}

// RuntimeState is the orchestrator's single state-machine value.
type RuntimeState string

const (
	StateIdle       RuntimeState = "Idle"
	StateListening  RuntimeState = "Listening"
	StateProcessing RuntimeState = "Processing"
	StateSpeaking   RuntimeState = "Speaking"
)

type StatusSnapshot struct {
	State    RuntimeState `json:"state"`
	MicMuted bool         `json:"mic_muted"`
	LidOpen  bool         `json:"lid_open"`
}

// ClientCommand is the wire-level request shape, tag discriminated by Type.
type ClientCommand struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Path   string          `json:"path,omitempty"`
	Format *AudioStreamFmt `json:"format,omitempty"`
	Data   ByteArray       `json:"data,omitempty"`
}

const (
	CmdPing             = "ping"
	CmdStatus           = "status"
	CmdText             = "text"
	CmdVoiceFile        = "voice_file"
	CmdAudioFile        = "audio_file"
	CmdAudioStreamStart = "audio_stream_start"
	CmdAudioStreamChunk = "audio_stream_chunk"
	CmdAudioStreamEnd   = "audio_stream_end"
	CmdButtonPress      = "button_press"
	CmdButtonRelease    = "button_release"
	CmdLidOpen          = "lid_open"
	CmdLidClose         = "lid_close"
)

// AudioStreamFmt mirrors AudioStreamFormat: either {"type":"mp3"} or
// {"type":"pcm","sample_rate":N,"channels":N}.
type AudioStreamFmt struct {
	Type       string `json:"type"`
	SampleRate uint32 `json:"sample_rate,omitempty"`
	Channels   uint16 `json:"channels,omitempty"`
}

func (f AudioStreamFmt) IsMp3() bool { return f.Type == "mp3" }

// ServerReply is the wire-level response shape.
type ServerReply struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Status  *StatusSnapshot `json:"status,omitempty"`
}

func ReplyOK(message string) ServerReply        { return ServerReply{Type: "ok", Message: message} }
func ReplyError(message string) ServerReply     { return ServerReply{Type: "error", Message: message} }
func ReplyStatus(s StatusSnapshot) ServerReply  { return ServerReply{Type: "status", Status: &s} }

// AudioOutput is a fully materialized playback payload.
type AudioOutput struct {
	Kind       string // "pcm" or "mp3"
	Data       []byte
	SampleRate uint32
	Channels   uint16
}

func PcmOutput(data []byte, sampleRate uint32, channels uint16) AudioOutput {
	return AudioOutput{Kind: "pcm", Data: data, SampleRate: sampleRate, Channels: channels}
}

func Mp3Output(data []byte) AudioOutput {
	return AudioOutput{Kind: "mp3", Data: data}
}

// AudioStream is a lazily produced, non-restartable chunk sequence.
type AudioStream struct {
	Format AudioStreamFmt
	Chunks <-chan StreamChunk
}

type StreamChunk struct {
	Data []byte
	Err  error
}

// EngineAudio is the Full|Stream sum type returned by an Engine.
type EngineAudio struct {
	Full   *AudioOutput
	Stream *AudioStream
}

// EngineResponse is what an Engine.Process call resolves to.
type EngineResponse struct {
	AssistantText *string
	Audio         EngineAudio
}

// ChatMessage is an immutable-once-appended session history entry.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Voice-input / speech-rec / voice-output internal events.

type VoiceInputEvent struct {
	Kind  string // "vad_speech" | "vad_silence" | "audio_chunk" | "audio_ended"
	Chunk []byte
}

func EvVadSpeech() VoiceInputEvent        { return VoiceInputEvent{Kind: "vad_speech"} }
func EvVadSilence() VoiceInputEvent       { return VoiceInputEvent{Kind: "vad_silence"} }
func EvAudioChunk(b []byte) VoiceInputEvent { return VoiceInputEvent{Kind: "audio_chunk", Chunk: b} }
func EvAudioEnded() VoiceInputEvent       { return VoiceInputEvent{Kind: "audio_ended"} }

type SpeechRecEvent struct {
	Text    string
	IsFinal bool
}

type VoiceInputCommand struct {
	Kind string // "start_listening" | "stop_listening" | "inject_audio_file" | "shutdown"
	Path string
}

type SpeechRecCommand struct {
	Kind  string // "audio_chunk" | "audio_ended" | "reset" | "shutdown"
	Chunk []byte
}

type VoiceOutputCommand struct {
	Kind   string // "play_text" | "play_audio_file" | "play_audio" | "start_stream" | "stream_chunk" | "end_stream" | "stop" | "shutdown"
	Text   string
	Path   string
	Audio  *AudioOutput
	Format AudioStreamFmt
	Chunk  []byte
}

type VoiceOutputEvent struct {
	Kind string // "finished"
}
