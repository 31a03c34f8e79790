package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/linkrank/internal/config"
)

func newRedactingLogger(t *testing.T, cfg RedactionConfig) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel)), &buf
}

func TestRedactingEncoder_PerEntryFields(t *testing.T) {
	zl, buf := newRedactingLogger(t, NewDefaultConfig().Redaction)

	zl.Info("Fetching page",
		zap.String("api_key", "sk-live-abcdef"),
		zap.String("url", "https://example.com/feed?token=abc123&page=2"),
		zap.String("header", "Bearer eyJhbGciOi"),
		zap.Error(errors.New("upstream rejected key sk-abcdefghijklmnopqrst")),
	)

	out := buf.String()
	assert.NotContains(t, out, "sk-live-abcdef")
	assert.NotContains(t, out, "abc123")
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrst")
	assert.Contains(t, out, `"api_key":"[REDACTED]"`)
	assert.Contains(t, out, `?token=[REDACTED]&page=2`)
	assert.Contains(t, out, `Bearer [REDACTED]`)
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	zl, buf := newRedactingLogger(t, NewDefaultConfig().Redaction)

	zl.With(zap.String("Authorization", "Basic dXNlcjpwYXNz"), zap.Strings("token", []string{"a"})).
		Info("Request")

	out := buf.String()
	assert.NotContains(t, out, "dXNlcjpwYXNz")
	assert.Contains(t, out, `"Authorization":"[REDACTED]"`)
	assert.Contains(t, out, `"token":"[REDACTED]"`)
}

func TestRedactingEncoder_Message(t *testing.T) {
	zl, buf := newRedactingLogger(t, NewDefaultConfig().Redaction)
	zl.Warn("retrying with api_key=xyz987")
	assert.NotContains(t, buf.String(), "xyz987")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	zl, buf := newRedactingLogger(t, RedactionConfig{})
	zl.Info("Fetching page", zap.String("api_key", "visible"))
	assert.Contains(t, buf.String(), `"api_key":"visible"`)
}

func TestNewRedactingEncoder_BadPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"["}})
	assert.Error(t, err)
}

func TestSecret(t *testing.T) {
	f := Secret("engine_key", config.Secret("sk-test"))
	assert.Equal(t, "[REDACTED:7]", f.String)
	assert.Equal(t, "", Secret("engine_key", config.Secret("")).String)
}
