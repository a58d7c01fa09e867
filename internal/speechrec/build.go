package speechrec

import (
	"errors"
	"fmt"
	"os"

	"github.com/heyalice-ai/alicepi/internal/speechrec/network"
)

// ErrNoBackend is returned when SR_BACKEND names a local inference engine.
// Whisper-family/streaming-transducer inference is out of scope here by
// design; the supported backends are the network transcription strategies.
var ErrNoBackend = errors.New("speech recognition inference libraries are out of scope; set SR_BACKEND to a network provider (groq, openai, deepgram, assemblyai)")

// BuildStrategy selects a Strategy by cfg.Engine, wrapping whichever network
// Transcriber matches into the batch WhisperStrategy shape (buffer on
// chunks, transcribe on end) — this is a legitimate SpeechRecognizer
// strategy even though it calls out over HTTP rather than running inference
// locally.
func BuildStrategy(cfg Config) (Strategy, error) {
	var t network.Transcriber

	switch cfg.Engine {
	case "groq":
		t = network.NewGroqSTT(os.Getenv("GROQ_API_KEY"), os.Getenv("SR_MODEL"))
	case "openai":
		t = network.NewOpenAISTT(os.Getenv("OPENAI_API_KEY"), os.Getenv("SR_MODEL"))
	case "deepgram":
		t = network.NewDeepgramSTT(os.Getenv("DEEPGRAM_API_KEY"))
	case "assemblyai":
		t = network.NewAssemblyAISTT(os.Getenv("ASSEMBLYAI_API_KEY"))
	default:
		return nil, fmt.Errorf("%w (got %q)", ErrNoBackend, cfg.Engine)
	}

	sampleRate := cfg.SampleRate
	return NewWhisperStrategy(func(pcm []byte, _ int) (string, error) {
		return t.Transcribe(pcm, sampleRate, "")
	}), nil
}
