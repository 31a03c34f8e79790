package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records entries in memory at every level including trace.
type TestLogger struct {
	*Logger
	Logs *observer.ObservedLogs
}

func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, Logs: logs}
}

// AssertLogged fails tb unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	for _, e := range t.Logs.All() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return
		}
	}
	tb.Errorf("no %s entry containing %q in %d entries", level, msg, t.Logs.Len())
}

// Field returns the context field key of the first entry with message msg.
func (t *TestLogger) Field(msg, key string) (zapcore.Field, bool) {
	for _, e := range t.Logs.FilterMessage(msg).All() {
		for _, f := range e.Context {
			if f.Key == key {
				return f, true
			}
		}
	}
	return zapcore.Field{}, false
}
