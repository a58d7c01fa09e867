// Package gpio polls the button and lid switch pins and turns level changes
// into ClientCommands, the Go analogue of the Rust original's rppal-based
// watcher — periph.io stands in for rppal, with the same debounced,
// active-low polling-loop shape.
package gpio

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
)

const pollInterval = 50 * time.Millisecond

type Config struct {
	ButtonPin int // BCM pin number, 0 means "not configured"
	LidPin    int
}

// Run polls the configured pins until ctx is cancelled, sending
// ButtonPress/ButtonRelease and LidOpen/LidClose commands on level changes.
// It returns immediately if neither pin is configured, or if the host's
// GPIO cannot be initialized (e.g. running off-device).
func Run(ctx context.Context, cfg Config, log logging.Logger, out chan<- protocol.ClientCommand) {
	if cfg.ButtonPin == 0 && cfg.LidPin == 0 {
		return
	}

	if _, err := host.Init(); err != nil {
		log.Warn("gpio unavailable", "error", err)
		return
	}

	button := openInputPin(cfg.ButtonPin, log, "button")
	lid := openInputPin(cfg.LidPin, log, "lid")

	var lastButton, lastLid gpio.Level
	var haveButton, haveLid bool
	if button != nil {
		lastButton = button.Read()
		haveButton = true
	}
	if lid != nil {
		lastLid = lid.Read()
		haveLid = true
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if button != nil {
				level := button.Read()
				if !haveButton || level != lastButton {
					haveButton, lastButton = true, level
					cmd := protocol.ClientCommand{Type: protocol.CmdButtonRelease}
					if level == gpio.Low {
						cmd = protocol.ClientCommand{Type: protocol.CmdButtonPress}
					}
					send(ctx, out, cmd)
				}
			}

			if lid != nil {
				level := lid.Read()
				if !haveLid || level != lastLid {
					haveLid, lastLid = true, level
					cmd := protocol.ClientCommand{Type: protocol.CmdLidOpen}
					if level == gpio.Low {
						cmd = protocol.ClientCommand{Type: protocol.CmdLidClose}
					}
					send(ctx, out, cmd)
				}
			}
		}
	}
}

func openInputPin(pin int, log logging.Logger, label string) gpio.PinIO {
	if pin == 0 {
		return nil
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		log.Warn("failed to find gpio pin", "pin", pin, "role", label)
		return nil
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		log.Warn("failed to init gpio pin", "pin", pin, "role", label, "error", err)
		return nil
	}
	return p
}

func send(ctx context.Context, out chan<- protocol.ClientCommand, cmd protocol.ClientCommand) {
	select {
	case out <- cmd:
	case <-ctx.Done():
	}
}
