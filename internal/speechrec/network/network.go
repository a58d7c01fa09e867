// Package network adapts the teacher's HTTP STT clients
// (pkg/providers/stt) into Transcriber implementations, so any of them can
// back a network-backed SpeechRecognizer strategy; these are the only
// backends BuildStrategy accepts. Batch transcription over HTTP is a legitimate
// strategy implementation per spec.md's "core consumes a SpeechRecognizer
// strategy" framing — it is not the inference library itself.
package network

// Transcriber is the narrow contract every adapted provider implements.
type Transcriber interface {
	Transcribe(pcm []byte, sampleRate int, lang string) (string, error)
	Name() string
}
