// Package logging provides the process-wide structured logger used across
// every storage-core subsystem in place of ad-hoc fmt.Printf/log.Printf
// tagging (e.g. "[BufferPool] HIT ...").
package logging

import "go.uber.org/zap"

// NewNop returns a logger that discards everything, used as the default
// when a subsystem is constructed without an explicit logger.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// NewDevelopment returns a human-readable console logger
// suitable for the demo command and local debugging.
func NewDevelopment() *zap.SugaredLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return NewNop()
	}
	return l.Sugar()
}

// OrNop returns log unchanged if non-nil, otherwise a no-op logger. Every
// subsystem constructor in this module calls this so callers can pass nil.
func OrNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return NewNop()
	}
	return log
}
