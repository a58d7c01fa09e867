package orchestrator

import (
	"os"
	"strconv"
	"time"
)

// Config is the orchestrator's own slice of runtime configuration, kept
// separate from each task's Config so each package can be constructed and
// tested independently.
type Config struct {
	BindAddr           string
	WatchdogTimeout    time.Duration
	GpioButtonPin      int
	GpioLidPin         int
	StatusLedPin       int
	StreamAudio        bool
	SaveRequestWavsDir string
	SessionTimeout     time.Duration
}

func DefaultBindAddr() string { return "127.0.0.1:7878" }

func ConfigFromEnv() Config {
	return Config{
		BindAddr:           firstNonEmpty(os.Getenv("BIND_ADDR"), DefaultBindAddr()),
		WatchdogTimeout:    envSeconds("WATCHDOG_TIMEOUT_SECONDS", 10),
		GpioButtonPin:      envInt("GPIO_BUTTON_PIN", 17),
		GpioLidPin:         envInt("GPIO_LID_PIN", 27),
		StatusLedPin:       envInt("LED_STATUS_GPIO", 0),
		StreamAudio:        envBool("STREAM_AUDIO", true),
		SaveRequestWavsDir: os.Getenv("SAVE_REQUEST_WAVS_DIR"),
		SessionTimeout:     envSeconds("SESSION_TIMEOUT_SECONDS", 60),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
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

func envSeconds(key string, def float64) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def * float64(time.Second))
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Duration(def * float64(time.Second))
	}
	return time.Duration(f * float64(time.Second))
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
