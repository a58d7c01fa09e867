package voiceinput

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/heyalice-ai/alicepi/internal/audio"
)

// rawFrame is one delivery from the capture thread: interleaved float32
// samples at the device's native rate/channel count.
type rawFrame struct {
	samples  []float32
	inRate   int
	inChans  int
}

// startLiveCapture opens a capture device on a dedicated OS thread (malgo's
// callback runs off the Go scheduler already) and streams frames onto a
// bounded channel until ctx is cancelled. Mirrors original_source's
// start_live_capture; the device is always opened as signed-16 stereo at
// 48 kHz, and malgo converts from the host's native format.
func startLiveCapture(ctx context.Context, deviceNameSubstr string) (<-chan rawFrame, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 2
	deviceConfig.SampleRate = 48000
	deviceConfig.Alsa.NoMMap = 1
	if id := selectDevice(mctx, malgo.Capture, deviceNameSubstr); id != nil {
		deviceConfig.Capture.DeviceID = id
	}

	out := make(chan rawFrame, 64)

	onSamples := func(_, pInput []byte, frameCount uint32) {
		if pInput == nil {
			return
		}
		samples := i16BytesToFloat32(pInput)
		select {
		case out <- rawFrame{samples: samples, inRate: int(deviceConfig.SampleRate), inChans: int(deviceConfig.Capture.Channels)}:
		default:
			// Drop the frame rather than block the device callback; a
			// dedicated OS thread must never stall on backpressure.
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	go func() {
		<-ctx.Done()
		device.Uninit()
		mctx.Uninit()
		close(out)
	}()

	return out, nil
}

// selectDevice enumerates devices of the given type and returns the ID of
// the first whose name contains substr, or nil to fall back to malgo's
// default device (an empty substr always falls back).
func selectDevice(mctx *malgo.AllocatedContext, deviceType malgo.DeviceType, substr string) *malgo.DeviceID {
	if strings.TrimSpace(substr) == "" {
		return nil
	}
	infos, err := mctx.Devices(deviceType)
	if err != nil {
		return nil
	}
	for i := range infos {
		if deviceMatches(infos[i].Name(), substr) {
			return &infos[i].ID
		}
	}
	return nil
}

func i16BytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(b[i*2]) | int16(b[i*2+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out
}

// streamMockAudio reads a WAV file and replays it at real-time cadence into
// the same rawFrame channel shape live capture uses, so downstream pipeline
// code cannot tell the difference.
func streamMockAudio(ctx context.Context, path string, chunkFrames int) (<-chan rawFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock audio file: %w", err)
	}
	wav, err := audio.DecodeWav(data)
	if err != nil {
		return nil, fmt.Errorf("decode mock wav: %w", err)
	}

	out := make(chan rawFrame, 8)
	frameBytes := chunkFrames * wav.Channels * 2
	if frameBytes <= 0 {
		frameBytes = 1024
	}
	frameDuration := time.Duration(chunkFrames) * time.Second / time.Duration(wav.SampleRate)

	go func() {
		defer close(out)
		for off := 0; off < len(wav.PCM); off += frameBytes {
			end := off + frameBytes
			if end > len(wav.PCM) {
				end = len(wav.PCM)
			}
			samples := i16BytesToFloat32(wav.PCM[off:end])
			select {
			case out <- rawFrame{samples: samples, inRate: wav.SampleRate, inChans: wav.Channels}:
			case <-ctx.Done():
				return
			}
			select {
			case <-time.After(frameDuration):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func deviceMatches(name, substr string) bool {
	substr = strings.TrimSpace(substr)
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(substr))
}
