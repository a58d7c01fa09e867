// Package voiceoutput owns the playback device. An async front-half
// forwards commands into a synchronous back-half that plays one-shot
// buffers, files, or a chunked byte stream (PCM or MP3), with prebuffer,
// frame-aligned pushes, and a playback-generation counter that gates the
// Finished event.
package voiceoutput

import (
	"context"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/heyalice-ai/alicepi/internal/audio"
	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
	"github.com/heyalice-ai/alicepi/internal/watchdog"
)

type Task struct {
	cfg        Config
	log        logging.Logger
	events     chan protocol.VoiceOutputEvent
	playedAudio func([]byte)
}

func NewTask(cfg Config, log logging.Logger) *Task {
	return &Task{cfg: cfg, log: log, events: make(chan protocol.VoiceOutputEvent, 8)}
}

func (t *Task) Events() <-chan protocol.VoiceOutputEvent { return t.events }

// OnPlayedAudio lets voice-input's echo suppressor observe what was just
// played back, so it can recognize the appliance's own output in the mic.
func (t *Task) OnPlayedAudio(fn func([]byte)) { t.playedAudio = fn }

// Run is the supervised task body (voice-output uses watchdog.SpawnTask,
// the non-restartable variant, since it owns a dedicated OS thread).
func (t *Task) Run(ctx context.Context, cmds <-chan protocol.VoiceOutputCommand, hb *watchdog.Heartbeat) {
	var current *sink
	var pusher *pcmPusher
	var mp3Reader *streamingReader
	var mp3Stop chan struct{}
	var playbackGen atomic.Uint64

	stopCurrent := func() {
		if mp3Stop != nil {
			close(mp3Stop)
			mp3Stop = nil
		}
		if mp3Reader != nil {
			mp3Reader.pushEnd()
			mp3Reader.close()
			mp3Reader = nil
		}
		if current != nil {
			current.stop()
			current.close()
			current = nil
		}
		pusher = nil
		playbackGen.Add(1)
	}

	heartbeatTick := time.NewTicker(500 * time.Millisecond)
	defer heartbeatTick.Stop()
	defer stopCurrent()

	watchFinish := func(s *sink, gen uint64) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
				if s.empty() {
					if playbackGen.Load() == gen {
						t.emit(ctx, protocol.VoiceOutputEvent{Kind: "finished"})
					}
					return
				}
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-heartbeatTick.C:
			hb.Tick()

		case cmd, ok := <-cmds:
			if !ok {
				return
			}

			switch cmd.Kind {
			case "play_text":
				stopCurrent()
				s, err := openSink(t.cfg, 44100, 2)
				if err != nil {
					t.log.Error("open sink failed", "error", err)
					continue
				}
				current = s
				s.push(beepPCM(44100, 2))
				gen := playbackGen.Load()
				go watchFinish(s, gen)

			case "play_audio_file":
				stopCurrent()
				s, stop, err := t.playFile(cmd.Path)
				if err != nil {
					t.log.Error("play audio file failed", "error", err)
					continue
				}
				current = s
				mp3Stop = stop
				gen := playbackGen.Load()
				go watchFinish(s, gen)

			case "play_audio":
				stopCurrent()
				s, stop, err := t.playAudio(*cmd.Audio)
				if err != nil {
					t.log.Error("play audio failed", "error", err)
					continue
				}
				current = s
				mp3Stop = stop
				gen := playbackGen.Load()
				go watchFinish(s, gen)

			case "start_stream":
				stopCurrent()
				if cmd.Format.IsMp3() {
					s, err := openSink(t.cfg, 44100, 2)
					if err != nil {
						t.log.Error("open sink failed", "error", err)
						continue
					}
					current = s
					mp3Reader = newStreamingReader()
					mp3Stop = make(chan struct{})
					go runMP3Stream(mp3Reader, s, mp3Stop)
					gen := playbackGen.Load()
					go watchFinish(s, gen)
				} else {
					sr := int(cmd.Format.SampleRate)
					ch := int(cmd.Format.Channels)
					if sr == 0 {
						sr = 44100
					}
					if ch == 0 {
						ch = 1
					}
					s, err := openSink(t.cfg, sr, ch)
					if err != nil {
						t.log.Error("open sink failed", "error", err)
						continue
					}
					current = s
					pusher = newPCMPusher(s, sr, ch)
					s.push(silencePcmBytes(startSilenceMS, sr, ch))
					gen := playbackGen.Load()
					go watchFinish(s, gen)
				}

			case "stream_chunk":
				if t.playedAudio != nil {
					t.playedAudio(cmd.Chunk)
				}
				if mp3Reader != nil {
					mp3Reader.pushData(cmd.Chunk)
				} else if pusher != nil {
					pusher.push(cmd.Chunk)
				}

			case "end_stream":
				if mp3Reader != nil {
					mp3Reader.pushEnd()
				} else if pusher != nil {
					pusher.flush()
				}

			case "stop":
				stopCurrent()

			case "shutdown":
				return
			}
		}
	}
}

func (t *Task) playFile(path string) (*sink, chan struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if isMp3(path, data) {
		return t.playAudio(protocol.Mp3Output(data))
	}
	wav, err := audio.DecodeWav(data)
	if err != nil {
		return nil, nil, err
	}
	return t.playAudio(protocol.PcmOutput(wav.PCM, uint32(wav.SampleRate), uint16(wav.Channels)))
}

// playAudio returns the opened sink and, for MP3 payloads, the stop channel
// that should be tracked (and closed on the next stopCurrent) so a one-shot
// decode goroutine can be cut short the same way a streamed one can.
func (t *Task) playAudio(out protocol.AudioOutput) (*sink, chan struct{}, error) {
	if out.Kind == "mp3" {
		reader := newStreamingReader()
		reader.pushData(out.Data)
		reader.pushEnd()
		s, err := openSink(t.cfg, 44100, 2)
		if err != nil {
			return nil, nil, err
		}
		stop := make(chan struct{})
		go runMP3Stream(reader, s, stop)
		return s, stop, nil
	}

	s, err := openSink(t.cfg, int(out.SampleRate), int(out.Channels))
	if err != nil {
		return nil, nil, err
	}
	pcm := out.Data
	pcm = pcm[:len(pcm)-(len(pcm)%2)]
	s.push(pcm)
	return s, nil, nil
}

func (t *Task) emit(ctx context.Context, ev protocol.VoiceOutputEvent) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func isMp3(path string, data []byte) bool {
	if len(data) >= 3 && data[0] == 'I' && data[1] == 'D' && data[2] == '3' {
		return true
	}
	return len(path) > 4 && path[len(path)-4:] == ".mp3"
}

// beepPCM generates a 250ms 440Hz sine wave at 0.15 amplitude, used for the
// PlayText debug tone (original_source's play_beep).
func beepPCM(sampleRate, channels int) []byte {
	const freq = 440.0
	const durationMS = 250
	const amplitude = 0.15

	frames := sampleRate * durationMS / 1000
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}

	mono := make([]byte, frames*2)
	for i, s := range samples {
		v := int16(s * 32767)
		mono[i*2] = byte(v)
		mono[i*2+1] = byte(v >> 8)
	}
	if channels == 1 {
		return mono
	}
	out := make([]byte, 0, len(mono)*channels)
	for i := 0; i < len(mono); i += 2 {
		for c := 0; c < channels; c++ {
			out = append(out, mono[i], mono[i+1])
		}
	}
	return out
}
