package voiceinput

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	TargetSampleRate int
	TargetChannels   int
	ChunkFrames      int
	VADThreshold     float64
	SilenceDuration  time.Duration
	StartListenGrace time.Duration
	CaptureDevice    string
	MockAudioFile    string
	SileroVADModel   string
	EchoSuppression  bool
}

func ConfigFromEnv() Config {
	return Config{
		TargetSampleRate: envInt("STREAM_SAMPLE_RATE", 48000),
		TargetChannels:   envInt("STREAM_CHANNELS", 2),
		ChunkFrames:      envInt("CHUNK_SIZE", 512),
		VADThreshold:     envFloat("VAD_THRESHOLD", 0.5),
		SilenceDuration:  time.Duration(envInt("SILENCE_DURATION_MS", 500)) * time.Millisecond,
		StartListenGrace: time.Duration(envInt("START_LISTEN_GRACE_MS", 2000)) * time.Millisecond,
		CaptureDevice:    firstNonEmpty(os.Getenv("CAPTURE_DEVICE"), os.Getenv("AUDIO_CARD")),
		MockAudioFile:    os.Getenv("MOCK_AUDIO_FILE"),
		SileroVADModel:   os.Getenv("SILERO_VAD_MODEL"),
		EchoSuppression:  envBool("ECHO_SUPPRESSION_ENABLED", true),
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
