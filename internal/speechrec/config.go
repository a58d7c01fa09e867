package speechrec

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

type Config struct {
	SampleRate      int
	Channels        int
	Engine          string // "groq", "openai", "deepgram" or "assemblyai"; the default "whisper" is rejected by BuildStrategy
	Threads         int
	HangoverTail    time.Duration
	SaveRequestWavs string
}

func ConfigFromEnv() Config {
	threads := runtime.NumCPU()
	if v := os.Getenv("SR_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			threads = n
		}
	}
	return Config{
		SampleRate:      envInt("STREAM_SAMPLE_RATE", 16000),
		Channels:        envInt("STREAM_CHANNELS", 1),
		Engine:          envString("SR_BACKEND", "whisper"),
		Threads:         threads,
		HangoverTail:    time.Duration(envInt("SILENCE_DURATION_MS", 500)) * time.Millisecond,
		SaveRequestWavs: os.Getenv("SAVE_REQUEST_WAVS_DIR"),
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

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
