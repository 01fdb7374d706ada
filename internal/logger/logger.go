package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

type Logger struct {
	entry    *logrus.Entry
	level    LogLevel
	tag      string
	throttle *throttle
}

// throttle remembers when a throttled message was last emitted. It is shared
// between a logger and all of its tagged children.
type throttle struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewLogger creates a leveled logger writing to out. A nil writer discards
// all output. Under systemd (INVOCATION_ID set) timestamps are omitted since
// the journal already records them.
func NewLogger(out io.Writer, level LogLevel) *Logger {
	if out == nil {
		out = io.Discard
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&SimpleFormatter{
		TimestampFormat:  "2006/01/02 15:04:05.000000",
		DisableTimestamp: os.Getenv("INVOCATION_ID") != "",
	})

	return &Logger{
		entry:    logrus.NewEntry(l),
		level:    level,
		tag:      "",
		throttle: &throttle{last: make(map[string]time.Time)},
	}
}

// WithTag creates a new logger with a tag prefix
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{
		entry:    l.entry,
		level:    l.level,
		tag:      tag,
		throttle: l.throttle,
	}
}

// Level returns the configured verbosity.
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) formatMessage(format string) string {
	if l.tag != "" {
		return "[" + l.tag + "] " + format
	}
	return format
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.entry.Debugf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.entry.Infof(l.formatMessage(format), v...)
	}
}

// Printf is an alias for Infof for compatibility
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Infof(format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.level >= LogLevelWarning {
		l.entry.Warnf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.entry.Errorf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.entry.Fatalf(l.formatMessage(format), v...)
}

// allow reports whether a message keyed by format may be emitted now, given
// that it must not repeat more often than once per period.
func (l *Logger) allow(period time.Duration, format string) bool {
	key := l.tag + "\x00" + format
	now := time.Now()

	l.throttle.mu.Lock()
	defer l.throttle.mu.Unlock()

	if last, ok := l.throttle.last[key]; ok && now.Sub(last) < period {
		return false
	}
	l.throttle.last[key] = now
	return true
}

// ThrottledInfof logs at info level at most once per period for a given format.
func (l *Logger) ThrottledInfof(period time.Duration, format string, v ...interface{}) {
	if l.level >= LogLevelInfo && l.allow(period, format) {
		l.entry.Infof(l.formatMessage(format), v...)
	}
}

// ThrottledWarnf logs at warning level at most once per period for a given format.
func (l *Logger) ThrottledWarnf(period time.Duration, format string, v ...interface{}) {
	if l.level >= LogLevelWarning && l.allow(period, format) {
		l.entry.Warnf(l.formatMessage(format), v...)
	}
}

// ThrottledErrorf logs at error level at most once per period for a given format.
func (l *Logger) ThrottledErrorf(period time.Duration, format string, v ...interface{}) {
	if l.level >= LogLevelError && l.allow(period, format) {
		l.entry.Errorf(l.formatMessage(format), v...)
	}
}
