package orchestrator

import (
	"context"
	"fmt"

	"github.com/heyalice-ai/alicepi/internal/engine"
	"github.com/heyalice-ai/alicepi/internal/gpio"
	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
	"github.com/heyalice-ai/alicepi/internal/speechrec"
	"github.com/heyalice-ai/alicepi/internal/statusled"
	"github.com/heyalice-ai/alicepi/internal/voiceinput"
	"github.com/heyalice-ai/alicepi/internal/voiceoutput"
	"github.com/heyalice-ai/alicepi/internal/watchdog"
)

const commandBuffer = 32

// RunServer wires every supervised task, the GPIO/status-LED side tasks,
// the TCP line server, and the central Orchestrator loop together, and
// blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg Config, log logging.Logger) error {
	voiceInputTask := voiceinput.NewTask(voiceinput.ConfigFromEnv(), log)
	voiceInputHandle := watchdog.NewCommandHandle(make(chan protocol.VoiceInputCommand, commandBuffer))
	go watchdog.Supervise(ctx, "voice_input", voiceInputHandle, commandBuffer, cfg.WatchdogTimeout, log, voiceInputTask.Run)

	srCfg := speechrec.ConfigFromEnv()
	if cfg.SaveRequestWavsDir != "" {
		srCfg.SaveRequestWavs = cfg.SaveRequestWavsDir
	}
	strategy, err := speechrec.BuildStrategy(srCfg)
	if err != nil {
		return fmt.Errorf("speech recognition init failed: %w", err)
	}
	speechRecTask := speechrec.NewTask(srCfg, log, strategy)
	speechRecHandle := watchdog.NewCommandHandle(make(chan protocol.SpeechRecCommand, commandBuffer))
	go watchdog.Supervise(ctx, "speech_rec", speechRecHandle, commandBuffer, cfg.WatchdogTimeout, log, speechRecTask.Run)

	voiceOutputTask := voiceoutput.NewTask(voiceoutput.ConfigFromEnv(), log)
	voiceOutputTask.OnPlayedAudio(voiceInputTask.RecordPlayedAudio)
	voiceOutputHandle := watchdog.SpawnTask(ctx, commandBuffer, voiceOutputTask.Run)

	eng := engine.Build(log)

	clientCmds := make(chan protocol.ClientCommand, 64)

	orch := New(cfg, log, eng, voiceInputHandle, speechRecHandle, voiceOutputHandle)

	go gpio.Run(ctx, gpio.Config{ButtonPin: cfg.GpioButtonPin, LidPin: cfg.GpioLidPin}, log, clientCmds)
	go statusled.Run(ctx, cfg.StatusLedPin, log, orch.Status)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- RunTCPServer(ctx, cfg.BindAddr, log, clientCmds, orch.Status)
	}()

	orch.Run(ctx, clientCmds, voiceInputTask.Events(), speechRecTask.Events(), voiceOutputTask.Events())

	select {
	case err := <-serverErr:
		return err
	default:
		return nil
	}
}
