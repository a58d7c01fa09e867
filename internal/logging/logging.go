// Package logging defines the narrow logger contract used across every
// long-lived task, so components depend on an interface rather than a
// concrete logging library.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// ZerologLogger adapts the interface above onto a zerolog.Logger, keeping
// structured fields for anything passed as alternating key/value pairs.
type ZerologLogger struct {
	log zerolog.Logger
}

func New(component string) *ZerologLogger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().
		Timestamp().
		Str("component", component).
		Logger()
	return &ZerologLogger{log: zl}
}

func (z *ZerologLogger) Debug(msg string, args ...interface{}) { z.event(z.log.Debug(), msg, args) }
func (z *ZerologLogger) Info(msg string, args ...interface{})  { z.event(z.log.Info(), msg, args) }
func (z *ZerologLogger) Warn(msg string, args ...interface{})  { z.event(z.log.Warn(), msg, args) }
func (z *ZerologLogger) Error(msg string, args ...interface{}) { z.event(z.log.Error(), msg, args) }

func (z *ZerologLogger) event(e *zerolog.Event, msg string, args []interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
