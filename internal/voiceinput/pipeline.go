// Package voiceinput owns the capture device (or mock file), resamples and
// re-channels audio to the target format, classifies it with a VAD
// classifier through a Silence/Speech/Hangover tracker, and emits audio
// chunks and end-of-utterance markers.
package voiceinput

import (
	"context"
	"time"

	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
	"github.com/heyalice-ai/alicepi/internal/watchdog"
)

type Task struct {
	cfg       Config
	log       logging.Logger
	events    chan protocol.VoiceInputEvent
	classifier Classifier
	echo      *EchoSuppressor
}

func NewTask(cfg Config, log logging.Logger) *Task {
	var classifier Classifier
	if cfg.TargetSampleRate == 16000 && cfg.SileroVADModel != "" {
		neural, err := NewNeuralClassifier(cfg.SileroVADModel, 16000, cfg.VADThreshold)
		if err != nil {
			log.Warn("neural vad unavailable, falling back to rms", "error", err)
			classifier = NewRMSClassifier(cfg.VADThreshold)
		} else {
			classifier = neural
		}
	} else {
		classifier = NewRMSClassifier(cfg.VADThreshold)
	}

	return &Task{
		cfg:        cfg,
		log:        log,
		events:     make(chan protocol.VoiceInputEvent, 256),
		classifier: classifier,
		echo:       NewEchoSuppressor(cfg.EchoSuppression),
	}
}

func (t *Task) Events() <-chan protocol.VoiceInputEvent { return t.events }

// RecordPlayedAudio lets voice-output feed back what it just played, so the
// echo suppressor can recognize it bleeding into the microphone.
func (t *Task) RecordPlayedAudio(chunk []byte) { t.echo.RecordPlayedAudio(chunk) }

// Run is the supervised task body: TaskFunc[protocol.VoiceInputCommand].
func (t *Task) Run(ctx context.Context, cmds <-chan protocol.VoiceInputCommand, hb *watchdog.Heartbeat) {
	listening := false
	tracker := NewTracker(t.cfg.SilenceDuration, t.cfg.StartListenGrace)
	resampler := NewResampler(t.cfg.TargetSampleRate, t.cfg.TargetSampleRate)

	var frames <-chan rawFrame
	var cancelCapture context.CancelFunc
	chunkBuf := make([]byte, 0, t.cfg.ChunkFrames*t.cfg.TargetChannels*2)

	openCapture := func() {
		captureCtx, cancel := context.WithCancel(ctx)
		cancelCapture = cancel
		var err error
		if t.cfg.MockAudioFile != "" {
			frames, err = streamMockAudio(captureCtx, t.cfg.MockAudioFile, t.cfg.ChunkFrames)
		} else {
			frames, err = startLiveCapture(captureCtx, t.cfg.CaptureDevice)
		}
		if err != nil {
			t.log.Error("capture open failed", "error", err)
			cancel()
			frames = nil
		}
	}
	closeCapture := func() {
		if cancelCapture != nil {
			cancelCapture()
			cancelCapture = nil
		}
		frames = nil
	}

	heartbeatTick := time.NewTicker(500 * time.Millisecond)
	defer heartbeatTick.Stop()
	defer closeCapture()

	emitChunk := func(pcm []byte) {
		for len(pcm) >= t.cfg.ChunkFrames*t.cfg.TargetChannels*2 {
			boundary := t.cfg.ChunkFrames * t.cfg.TargetChannels * 2
			chunkBuf = append(chunkBuf[:0], pcm[:boundary]...)
			pcm = pcm[boundary:]

			isSpeech := false
			working := chunkBuf
			if t.echo.IsEcho(chunkBuf) {
				working = make([]byte, len(chunkBuf))
			} else {
				speech, err := t.classifier.Classify(chunkBuf)
				if err != nil {
					t.log.Warn("vad inference failed, treating as silence", "error", err)
				}
				isSpeech = speech
			}
			for _, ev := range tracker.Observe(append([]byte(nil), working...), isSpeech) {
				if ev.Kind == "vad_silence" {
					t.classifier.Reset()
				}
				t.emit(ctx, ev)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			for _, ev := range tracker.ForceSilence() {
				t.emit(ctx, ev)
			}
			return

		case <-heartbeatTick.C:
			hb.Tick()

		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			switch cmd.Kind {
			case "start_listening":
				listening = true
				tracker.BeginListen()
				t.classifier.Reset()
				closeCapture()
				openCapture()
			case "stop_listening":
				listening = false
				for _, ev := range tracker.ForceSilence() {
					t.emit(ctx, ev)
				}
				t.classifier.Reset()
				closeCapture()
			case "inject_audio_file":
				closeCapture()
				captureCtx, cancel := context.WithCancel(ctx)
				cancelCapture = cancel
				var err error
				frames, err = streamMockAudio(captureCtx, cmd.Path, t.cfg.ChunkFrames)
				if err != nil {
					t.log.Error("inject audio file failed", "error", err)
					cancel()
					frames = nil
					continue
				}
				listening = true
				tracker.BeginListen()
				t.classifier.Reset()
			case "shutdown":
				return
			}

		case frame, ok := <-frames:
			if !ok {
				if listening {
					for _, ev := range tracker.ForceSilence() {
						t.emit(ctx, ev)
					}
					t.classifier.Reset()
					listening = false
				}
				continue
			}
			if !listening {
				continue
			}
			if resampler.inRate != frame.inRate {
				resampler = NewResampler(frame.inRate, t.cfg.TargetSampleRate)
			}
			mono := ConvertChannels(frame.samples, frame.inChans, t.cfg.TargetChannels)
			resampled := resampler.Resample(mono)
			emitChunk(protocolPcmBytes(resampled))
		}
	}
}

func (t *Task) emit(ctx context.Context, ev protocol.VoiceInputEvent) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func protocolPcmBytes(samples []float32) []byte {
	return f32ToI16Bytes(samples)
}

func f32ToI16Bytes(samples []float32) []byte {
	return F32ToI16(samples)
}
