// Package logger defines the small logging hook surface used throughout the
// overlay node so callers can plug in their own log sink.
package logger

import (
	"io"
	"log"
)

// DebugLogger is implemented by anything that wants to observe the node's
// internal log lines. Errors are always local and non-fatal (see the core's
// error handling design): a DebugLogger never receives a chance to abort
// processing, only to record what happened.
type DebugLogger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Level filters which of a LevelLogger's calls actually reach its sink.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// NullLogger is the default DebugLogger: it writes every call to the
// standard log package, prefixed by level, so a node is never silently
// unobservable even before a caller wires up its own sink.
type NullLogger struct{}

func (l *NullLogger) Debugf(format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}

func (l *NullLogger) Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}

func (l *NullLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}

// LevelLogger writes to an arbitrary io.Writer, dropping any call below Min
// before it's ever formatted -- useful for a CLI flag like -v that wants to
// quiet Debugf chatter without swapping the whole DebugLogger implementation.
type LevelLogger struct {
	Min Level
	log *log.Logger
}

// NewLevelLogger returns a LevelLogger writing to w, suppressing calls below
// min.
func NewLevelLogger(w io.Writer, min Level) *LevelLogger {
	return &LevelLogger{Min: min, log: log.New(w, "", log.LstdFlags)}
}

func (l *LevelLogger) Debugf(format string, args ...interface{}) {
	if l.Min > LevelDebug {
		return
	}
	l.log.Printf("[DEBUG] "+format, args...)
}

func (l *LevelLogger) Infof(format string, args ...interface{}) {
	if l.Min > LevelInfo {
		return
	}
	l.log.Printf("[INFO] "+format, args...)
}

func (l *LevelLogger) Errorf(format string, args ...interface{}) {
	l.log.Printf("[ERROR] "+format, args...)
}
