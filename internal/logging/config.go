package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/linkrank/internal/config"
)

// ServiceName is attached to every log line and names the OTEL log scope.
const ServiceName = "linkrank"

const maxPatternLen = 256

// Config is the logging section of config.yaml.
type Config struct {
	Level  zapcore.Level `koanf:"level"`
	Format string        `koanf:"format"` // json or console
	Output OutputConfig  `koanf:"output"`
	// Sampling applies below error level.
	Sampling  SamplingConfig    `koanf:"sampling"`
	Caller    bool              `koanf:"caller"`
	Fields    map[string]string `koanf:"fields"`
	Redaction RedactionConfig   `koanf:"redaction"`
}

type OutputConfig struct {
	Console bool `koanf:"console"`
	// Stream is "stderr" or "stdout". Commands that print results or speak
	// MCP on stdout force stderr.
	Stream string `koanf:"stream"`
	OTEL   bool   `koanf:"otel"`
}

// SamplingConfig keeps the first Initial entries with the same message per
// Tick, then every Thereafter-th. Thereafter 0 drops the rest.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

// RedactionConfig masks values of sensitive keys and substrings that match
// Patterns. The first capture group of a pattern is kept.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns JSON logs on stderr at info level.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Console: true, Stream: "stderr"},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
		Caller: true,
		Fields: map[string]string{"service": ServiceName},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields:  []string{"api_key", "authorization", "password", "secret", "token"},
			Patterns: []string{
				`(?i)(bearer\s+)\S+`,
				`(?i)(api[_-]?key[=:]\s*)\S+`,
				`([?&](?:access_token|token|key|sig|signature)=)[^&\s]+`,
				`sk-[A-Za-z0-9_-]{16,}`,
			},
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be json or console, got %q", c.Format)
	}
	if !c.Output.Console && !c.Output.OTEL {
		return errors.New("no output enabled; set output.console or output.otel")
	}
	switch c.Output.Stream {
	case "", "stderr", "stdout":
	default:
		return fmt.Errorf("output.stream must be stderr or stdout, got %q", c.Output.Stream)
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick.Duration() <= 0 {
			return errors.New("sampling.tick must be positive")
		}
		if c.Sampling.Initial < 1 || c.Sampling.Thereafter < 0 {
			return fmt.Errorf("sampling needs initial >= 1 and thereafter >= 0, got %d/%d",
				c.Sampling.Initial, c.Sampling.Thereafter)
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q=%q must have a key and a value", k, v)
		}
	}
	if c.Redaction.Enabled {
		if _, err := compilePatterns(c.Redaction.Patterns); err != nil {
			return err
		}
	}
	return nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern longer than %d bytes: %.32q...", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
