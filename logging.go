package memcev

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// engineLogger adapts a logiface.Logger to engine.Logger, so the engine
// package stays decoupled from any particular logging backend while this
// package wires it to stumpy's JSON writer.
type engineLogger struct {
	log *logiface.Logger[*stumpy.Event]
}

func (l engineLogger) Debugf(format string, args ...any) {
	l.log.Debug().Logf(format, args...)
}

func (l engineLogger) Errorf(format string, args ...any) {
	l.log.Err().Logf(format, args...)
}

// newLogger builds the stumpy-backed logiface logger used when debug
// logging is enabled. Debug level is silent by default; WithDebug raises
// it so Debug()-level calls actually reach the writer.
func newLogger(debug bool) *logiface.Logger[*stumpy.Event] {
	level := logiface.LevelInformational
	if debug {
		level = logiface.LevelDebug
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithLevel(level),
	)
}
