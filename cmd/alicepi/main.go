package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/orchestrator"
	"github.com/heyalice-ai/alicepi/internal/protocol"
	"github.com/heyalice-ai/alicepi/internal/statusled"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "note: no .env file found, using system environment variables")
	}

	root := &cobra.Command{
		Use:   "alicepi",
		Short: "AlicePi push-to-talk voice assistant runtime",
	}

	root.AddCommand(newServerCmd(), newClientCmd(), newLedTestCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServerCmd() *cobra.Command {
	var bind string
	var watchdogMS int
	var gpioButton int
	var gpioLid int
	var ledStatus int
	var stream bool
	var saveRequestWavs string
	var downloadModels bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the orchestrator server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New("alicepi")

			if downloadModels {
				log.Info("--download-models is a no-op: model provisioning is out of scope for this runtime")
			}

			cfg := orchestrator.ConfigFromEnv()
			if cmd.Flags().Changed("bind") {
				cfg.BindAddr = bind
			}
			if cmd.Flags().Changed("watchdog-ms") {
				cfg.WatchdogTimeout = time.Duration(watchdogMS) * time.Millisecond
			}
			if cmd.Flags().Changed("gpio-button") {
				cfg.GpioButtonPin = gpioButton
			}
			if cmd.Flags().Changed("gpio-lid") {
				cfg.GpioLidPin = gpioLid
			}
			if cmd.Flags().Changed("led-status-gpio") {
				cfg.StatusLedPin = ledStatus
			}
			if cmd.Flags().Changed("stream") {
				cfg.StreamAudio = stream
			}
			if saveRequestWavs != "" {
				cfg.SaveRequestWavsDir = saveRequestWavs
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return orchestrator.RunServer(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", orchestrator.DefaultBindAddr(), "TCP bind address")
	cmd.Flags().IntVar(&watchdogMS, "watchdog-ms", 10000, "supervised task heartbeat timeout, in milliseconds")
	cmd.Flags().IntVar(&gpioButton, "gpio-button", 17, "BCM pin number for the push-to-talk button (0 disables)")
	cmd.Flags().IntVar(&gpioLid, "gpio-lid", 27, "BCM pin number for the lid switch (0 disables)")
	cmd.Flags().IntVar(&ledStatus, "led-status-gpio", 0, "BCM pin number for the status LED (0 disables)")
	cmd.Flags().BoolVar(&stream, "stream", true, "accepted for compatibility; has no effect, the cloud engine always streams its audio as it arrives")
	cmd.Flags().StringVar(&saveRequestWavs, "save-request-wavs", "", "directory to dump each recognized utterance as a WAV file")
	cmd.Flags().BoolVar(&downloadModels, "download-models", false, "accepted for compatibility; model provisioning is out of scope")

	return cmd
}

func newClientCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Send a single command to a running server",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", orchestrator.DefaultBindAddr(), "server TCP address")

	run := func(build func(args []string) protocol.ClientCommand) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			reply, err := orchestrator.SendCommand(ctx, addr, build(args))
			if err != nil {
				return err
			}
			printReply(reply)
			return nil
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:  "ping",
		RunE: run(func(args []string) protocol.ClientCommand { return protocol.ClientCommand{Type: protocol.CmdPing} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "status",
		RunE: run(func(args []string) protocol.ClientCommand { return protocol.ClientCommand{Type: protocol.CmdStatus} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "text <message>",
		Args: cobra.ExactArgs(1),
		RunE: run(func(args []string) protocol.ClientCommand { return protocol.ClientCommand{Type: protocol.CmdText, Text: args[0]} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "voice <path>",
		Args: cobra.ExactArgs(1),
		RunE: run(func(args []string) protocol.ClientCommand { return protocol.ClientCommand{Type: protocol.CmdVoiceFile, Path: args[0]} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "audio <path>",
		Args: cobra.ExactArgs(1),
		RunE: run(func(args []string) protocol.ClientCommand { return protocol.ClientCommand{Type: protocol.CmdAudioFile, Path: args[0]} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "button",
		RunE: run(func(args []string) protocol.ClientCommand { return protocol.ClientCommand{Type: protocol.CmdButtonPress} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "lid-open",
		RunE: run(func(args []string) protocol.ClientCommand { return protocol.ClientCommand{Type: protocol.CmdLidOpen} }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:  "lid-close",
		RunE: run(func(args []string) protocol.ClientCommand { return protocol.ClientCommand{Type: protocol.CmdLidClose} }),
	})

	return cmd
}

func printReply(reply protocol.ServerReply) {
	switch reply.Type {
	case "ok":
		fmt.Printf("ok: %s\n", reply.Message)
	case "status":
		if reply.Status != nil {
			fmt.Printf("state: %s, mic_muted: %t, lid_open: %t\n", reply.Status.State, reply.Status.MicMuted, reply.Status.LidOpen)
		}
	case "error":
		fmt.Printf("error: %s\n", reply.Message)
	}
}

func newLedTestCmd() *cobra.Command {
	var pin int

	cmd := &cobra.Command{
		Use:   "led-test",
		Short: "Cycle the status LED through every runtime state",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New("led-test")
			states := []protocol.RuntimeState{
				protocol.StateIdle, protocol.StateListening, protocol.StateProcessing, protocol.StateSpeaking,
			}

			ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
			defer cancel()

			idx := 0
			go statusled.Run(ctx, pin, log, func() protocol.StatusSnapshot {
				return protocol.StatusSnapshot{State: states[idx]}
			})

			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					idx = (idx + 1) % len(states)
					log.Info("led-test advancing state", "state", string(states[idx]))
				}
			}
		},
	}
	cmd.Flags().IntVar(&pin, "led-status-gpio", 22, "BCM pin number for the status LED")
	return cmd
}
