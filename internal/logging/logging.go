package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	f              *os.File
	entry          *logrus.Entry
	consoleVerbose bool
}

// New writes to the file at path, and also to stderr when consoleVerbose
// is set. Debug lines are only emitted in verbose mode.
func New(path string, consoleVerbose bool) (*Logger, error) {
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	var out io.Writer = f
	if consoleVerbose {
		out = io.MultiWriter(f, os.Stderr)
	}
	return &Logger{f: f, entry: logrus.NewEntry(newBase(out, consoleVerbose)), consoleVerbose: consoleVerbose}, nil
}

// NewWriter logs to w only. Used by tests and tools that own the output.
func NewWriter(w io.Writer, verbose bool) *Logger {
	return &Logger{entry: logrus.NewEntry(newBase(w, verbose)), consoleVerbose: verbose}
}

func newBase(out io.Writer, verbose bool) *logrus.Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})
	base.SetLevel(logrus.InfoLevel)
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	}
	return base
}

func (l *Logger) Close() {
	if l.f != nil {
		_ = l.f.Close()
	}
}

// With returns a logger that tags every line with key=value. The returned
// logger shares the parent's output and must not be closed.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value), consoleVerbose: l.consoleVerbose}
}

func (l *Logger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }
func (l *Logger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
