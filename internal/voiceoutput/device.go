package voiceoutput

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// sink is the async-front/sync-back playback device: a single malgo
// playback device fed from a mutex-guarded pending buffer, exactly the
// shape cmd/agent/main.go's onSamples callback uses for output.
type sink struct {
	mctx   *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	pending []byte
	channels int
	sampleRate int
}

func openSink(cfg Config, sampleRate, channels int) (*sink, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	s := &sink{mctx: mctx, channels: channels, sampleRate: sampleRate}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if id := selectPlaybackDevice(mctx, cfg.PlaybackDevice); id != nil {
		deviceConfig.Playback.DeviceID = id
	}

	onSamples := func(pOutput, _ []byte, frameCount uint32) {
		s.mu.Lock()
		n := copy(pOutput, s.pending)
		s.pending = s.pending[n:]
		s.mu.Unlock()
		for i := n; i < len(pOutput); i++ {
			pOutput[i] = 0
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, fmt.Errorf("start playback device: %w", err)
	}
	s.device = device
	return s, nil
}

// selectPlaybackDevice enumerates playback devices and returns the ID of
// the first whose name contains substr, or nil to fall back to malgo's
// default device (an empty substr always falls back).
func selectPlaybackDevice(mctx *malgo.AllocatedContext, substr string) *malgo.DeviceID {
	if strings.TrimSpace(substr) == "" {
		return nil
	}
	infos, err := mctx.Devices(malgo.Playback)
	if err != nil {
		return nil
	}
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), strings.ToLower(substr)) {
			return &infos[i].ID
		}
	}
	return nil
}

func (s *sink) push(pcm []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, pcm...)
	s.mu.Unlock()
}

func (s *sink) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0
}

func (s *sink) stop() {
	s.mu.Lock()
	s.pending = s.pending[:0]
	s.mu.Unlock()
}

func (s *sink) close() {
	if s.device != nil {
		s.device.Uninit()
	}
	if s.mctx != nil {
		s.mctx.Uninit()
	}
}
