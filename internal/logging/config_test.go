package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "stderr", cfg.Output.Stream)
	assert.False(t, cfg.Output.OTEL)
	assert.Equal(t, ServiceName, cfg.Fields["service"])
	assert.Contains(t, cfg.Redaction.Fields, "api_key")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "console format", modify: func(c *Config) { c.Format = "console" }},
		{name: "otel only", modify: func(c *Config) { c.Output = OutputConfig{OTEL: true} }},
		{name: "sampling off ignores tick", modify: func(c *Config) { c.Sampling = SamplingConfig{} }},
		{name: "redaction off ignores patterns", modify: func(c *Config) {
			c.Redaction = RedactionConfig{Patterns: []string{"("}}
		}},
		{name: "bad format", modify: func(c *Config) { c.Format = "xml" }, errMsg: "format"},
		{name: "no output", modify: func(c *Config) { c.Output = OutputConfig{} }, errMsg: "no output"},
		{name: "bad stream", modify: func(c *Config) { c.Output.Stream = "file" }, errMsg: "output.stream"},
		{name: "zero tick", modify: func(c *Config) { c.Sampling.Tick = 0 }, errMsg: "sampling.tick"},
		{name: "zero initial", modify: func(c *Config) { c.Sampling.Initial = 0 }, errMsg: "initial >= 1"},
		{name: "empty field value", modify: func(c *Config) { c.Fields["env"] = "" }, errMsg: "constant field"},
		{name: "bad pattern", modify: func(c *Config) { c.Redaction.Patterns = []string{"(unclosed"} }, errMsg: "invalid redaction pattern"},
		{name: "long pattern", modify: func(c *Config) {
			c.Redaction.Patterns = []string{strings.Repeat("a", maxPatternLen+1)}
		}, errMsg: "longer than"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
