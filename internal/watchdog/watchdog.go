// Package watchdog supervises long-lived tasks: it owns each task's
// inbound command channel behind a CommandHandle, watches a heartbeat, and
// restarts the task on timeout or spontaneous exit.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/heyalice-ai/alicepi/internal/logging"
)

// CommandHandle wraps a channel send so the sender can be swapped out from
// under callers transparently when the supervised task restarts.
type CommandHandle[T any] struct {
	mu sync.RWMutex
	ch chan T
}

func NewCommandHandle[T any](ch chan T) *CommandHandle[T] {
	return &CommandHandle[T]{ch: ch}
}

func (h *CommandHandle[T]) Send(ctx context.Context, cmd T) error {
	h.mu.RLock()
	ch := h.ch
	h.mu.RUnlock()
	select {
	case ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *CommandHandle[T]) replace(ch chan T) {
	h.mu.Lock()
	h.ch = ch
	h.mu.Unlock()
}

// Heartbeat is a last-value timestamp a supervised task ticks to prove
// liveness. A task that is legitimately busy must still tick at least once
// per half of the configured timeout.
type Heartbeat struct {
	mu   sync.Mutex
	last time.Time
}

func NewHeartbeat() *Heartbeat {
	return &Heartbeat{last: time.Now()}
}

func (h *Heartbeat) Tick() {
	h.mu.Lock()
	h.last = time.Now()
	h.mu.Unlock()
}

func (h *Heartbeat) Elapsed() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Since(h.last)
}

// TaskFunc is the body of a supervised task. It must return when ctx is
// cancelled; restart happens whenever it returns, for any reason.
type TaskFunc[T any] func(ctx context.Context, cmds <-chan T, hb *Heartbeat)

// Supervise runs fn repeatedly, restarting it whenever it exits or its
// heartbeat goes stale, until shutdownCtx is cancelled. handle is replaced
// with a fresh channel on every (re)start.
func Supervise[T any](
	shutdownCtx context.Context,
	name string,
	handle *CommandHandle[T],
	buffer int,
	heartbeatTimeout time.Duration,
	log logging.Logger,
	fn TaskFunc[T],
) {
	checkInterval := 250 * time.Millisecond
	for {
		if shutdownCtx.Err() != nil {
			return
		}

		ch := make(chan T, buffer)
		handle.replace(ch)
		hb := NewHeartbeat()

		taskCtx, cancel := context.WithCancel(shutdownCtx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn(taskCtx, ch, hb)
		}()

		ticker := time.NewTicker(checkInterval)
	watch:
		for {
			select {
			case <-shutdownCtx.Done():
				cancel()
				ticker.Stop()
				<-done
				return
			case <-ticker.C:
				if hb.Elapsed() > heartbeatTimeout {
					log.Warn("watchdog timeout, restarting task", "task", name)
					cancel()
					ticker.Stop()
					<-done
					break watch
				}
			case <-done:
				log.Warn("task exited, restarting", "task", name)
				cancel()
				ticker.Stop()
				break watch
			}
		}
	}
}

// SpawnTask starts fn once without restart semantics, used for tasks that
// own a non-restartable dedicated OS thread (voice-output).
func SpawnTask[T any](shutdownCtx context.Context, buffer int, fn TaskFunc[T]) *CommandHandle[T] {
	ch := make(chan T, buffer)
	handle := NewCommandHandle(ch)
	hb := NewHeartbeat()
	go fn(shutdownCtx, ch, hb)
	return handle
}
