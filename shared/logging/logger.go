// Package logging provides the leveled logging capability injected into the
// agenda components.
package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Logger interface for logging. Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// ZerologLogger adapts zerolog to Logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerolog wraps logger and tags every entry with the given source.
func NewZerolog(logger zerolog.Logger, source string) *ZerologLogger {
	return &ZerologLogger{
		logger: logger.With().Str("source", source).Logger(),
	}
}

func (z *ZerologLogger) Debug(msg string, fields ...interface{}) {
	withFields(z.logger.Debug(), fields).Msg(msg)
}

func (z *ZerologLogger) Info(msg string, fields ...interface{}) {
	withFields(z.logger.Info(), fields).Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, fields ...interface{}) {
	withFields(z.logger.Warn(), fields).Msg(msg)
}

func (z *ZerologLogger) Error(msg string, fields ...interface{}) {
	withFields(z.logger.Error(), fields).Msg(msg)
}

func withFields(ev *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if i+1 >= len(fields) {
			ev = ev.Str(key, "(missing)")
			break
		}
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}
