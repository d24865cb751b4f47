// Package log is a thin facade over logrus, mirroring the role of
// echoryn/pkg/logger (InitLog/FlushLog) but exposed as an injectable
// interface so the core packages never depend on a concrete logging
// backend, and tests can substitute a discard logger.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal structured-logging surface the core uses.
type Logger interface {
	WithField(key string, value any) Logger
	Debug(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger writing to w at the given level (e.g. logrus.InfoLevel).
func New(w io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Default returns a Logger writing to stderr at Info level, matching
// echoryn's default logger construction.
func Default() Logger {
	return New(os.Stderr, logrus.InfoLevel)
}

// Discard returns a Logger that drops everything, for use in tests that
// don't want to assert on log output.
func Discard() Logger {
	return New(io.Discard, logrus.PanicLevel)
}

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) Debug(args ...any) { l.entry.Debug(args...) }
func (l *logrusLogger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *logrusLogger) Error(args ...any) { l.entry.Error(args...) }
