// Package speechrec buffers PCM from voice-input and, on end-of-utterance,
// hands it to a dedicated transcriber worker; responses are tagged with a
// generation so stale results (from before a Reset) are dropped.
package speechrec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/heyalice-ai/alicepi/internal/audio"
	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
	"github.com/heyalice-ai/alicepi/internal/watchdog"
)

type Task struct {
	cfg      Config
	log      logging.Logger
	strategy Strategy
	events   chan protocol.SpeechRecEvent
	nextReq  uint64
}

func NewTask(cfg Config, log logging.Logger, strategy Strategy) *Task {
	return &Task{
		cfg:      cfg,
		log:      log,
		strategy: strategy,
		events:   make(chan protocol.SpeechRecEvent, 64),
	}
}

func (t *Task) Events() <-chan protocol.SpeechRecEvent { return t.events }

// Run is the supervised task body: TaskFunc[protocol.SpeechRecCommand].
func (t *Task) Run(ctx context.Context, cmds <-chan protocol.SpeechRecCommand, hb *watchdog.Heartbeat) {
	var generation atomic.Uint64

	reqs := make(chan transcribeRequest, 4)
	resp := make(chan transcribeResponse, 4)
	go spawnWorker(t.strategy, reqs, resp)
	defer close(reqs)

	var buf []byte
	heartbeatTick := time.NewTicker(500 * time.Millisecond)
	defer heartbeatTick.Stop()

	send := func(req transcribeRequest) {
		select {
		case reqs <- req:
		case <-ctx.Done():
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
			case "audio_chunk":
				buf = append(buf, cmd.Chunk...)
				send(transcribeRequest{
					generation: generation.Load(),
					pcm:        cmd.Chunk,
					sampleRate: t.cfg.SampleRate,
					channels:   t.cfg.Channels,
				})

			case "audio_ended":
				tailLen := int(t.cfg.HangoverTail.Seconds() * float64(t.cfg.SampleRate) * float64(t.cfg.Channels) * 2)
				tail := make([]byte, tailLen)
				gen := generation.Load()

				// The hangover tail is appended before end-of-utterance so
				// the decoder sees it too, not just the WAV dump: a
				// truncated final chunk otherwise destabilizes it.
				buf = append(buf, tail...)
				send(transcribeRequest{
					generation: gen,
					pcm:        tail,
					sampleRate: t.cfg.SampleRate,
					channels:   t.cfg.Channels,
				})
				send(transcribeRequest{generation: gen, end: true})

				if t.cfg.SaveRequestWavs != "" {
					go t.dumpWav(append([]byte(nil), buf...))
				}
				buf = buf[:0]

			case "reset":
				generation.Add(1)
				buf = buf[:0]
				t.strategy.Reset()

			case "shutdown":
				return
			}

		case r, ok := <-resp:
			if !ok {
				return
			}
			if r.generation != generation.Load() {
				continue
			}
			if r.err != nil {
				t.log.Warn("transcription error", "error", r.err)
				continue
			}
			if r.text == "" {
				continue
			}
			t.emit(ctx, protocol.SpeechRecEvent{Text: r.text, IsFinal: r.isFinal})
		}
	}
}

func (t *Task) emit(ctx context.Context, ev protocol.SpeechRecEvent) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func (t *Task) dumpWav(pcm []byte) {
	name := fmt.Sprintf("request_%d_%d.wav", os.Getpid(), time.Now().UnixMilli())
	path := filepath.Join(t.cfg.SaveRequestWavs, name)
	data := audio.EncodeWav(pcm, t.cfg.SampleRate, t.cfg.Channels)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.log.Warn("failed to save request wav", "error", err, "path", path)
	}
}
