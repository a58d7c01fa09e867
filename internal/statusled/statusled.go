// Package statusled drives a single status LED off the orchestrator's
// last-value status snapshot: solid off when idle, solid on while
// listening, and a blink pattern while processing or speaking. It is not
// part of the core state machine — a side consumer, the same way the
// teacher derives playback side effects from session state changes.
package statusled

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

const pollInterval = 100 * time.Millisecond

// Run blinks the LED at pin according to StatusFn()'s state until ctx is
// cancelled. A zero pin disables the task.
func Run(ctx context.Context, pin int, log logging.Logger, statusFn func() protocol.StatusSnapshot) {
	if pin == 0 {
		return
	}

	if _, err := host.Init(); err != nil {
		log.Warn("status led unavailable", "error", err)
		return
	}

	led := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if led == nil {
		log.Warn("failed to find status led pin", "pin", pin)
		return
	}
	if err := led.Out(gpio.Low); err != nil {
		log.Warn("failed to init status led pin", "pin", pin, "error", err)
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	blinkOn := false
	for {
		select {
		case <-ctx.Done():
			_ = led.Out(gpio.Low)
			return
		case <-ticker.C:
			switch statusFn().State {
			case protocol.StateIdle:
				_ = led.Out(gpio.Low)
			case protocol.StateListening:
				_ = led.Out(gpio.High)
			case protocol.StateProcessing, protocol.StateSpeaking:
				blinkOn = !blinkOn
				if blinkOn {
					_ = led.Out(gpio.High)
				} else {
					_ = led.Out(gpio.Low)
				}
			}
		}
	}
}
