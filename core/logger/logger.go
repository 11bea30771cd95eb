// Package logger provides the shell's debug log.
//
// Nothing is written unless the shell is started with --debug; each session
// tags its lines with a random id so interleaved logs from nested shells and
// builtin children can be told apart.
package logger

import (
	"io"
	"log"

	"github.com/google/uuid"
)

// Logger creates session loggers that share one destination.
type Logger struct {
	w     io.Writer
	flags int
}

// New creates a Logger writing to w.
func New(w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{w: w, flags: log.LstdFlags | log.Lmicroseconds}
}

// Discard creates a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard)
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	id := uuid.New().String()
	return &SessionLogger{
		Logger:    log.New(l.w, "pgsh["+id[:8]+"] ", l.flags),
		sessionID: id,
	}
}

// Sessionless creates a logger without a session ID.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: log.New(l.w, "pgsh ", l.flags)}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*log.Logger
	sessionID string
}

// SessionID is empty for sessionless loggers.
func (s *SessionLogger) SessionID() string {
	return s.sessionID
}
