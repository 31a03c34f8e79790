// Package config provides configuration loading for linkrank.
//
// Configuration is read from an optional YAML file and overridden by
// LINKRANK_* environment variables. Sections owned by other packages
// (logging, telemetry) are read with Loader.Unmarshal.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/linkrank/internal/engine"
	"github.com/fyrsmithlabs/linkrank/internal/filter"
	"github.com/fyrsmithlabs/linkrank/internal/page"
	"github.com/fyrsmithlabs/linkrank/internal/scorer"
)

// Config holds the complete linkrank configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Ranking RankingConfig `koanf:"ranking"`
	Filter  filter.Config `koanf:"filter"`
	Scoring scorer.Config `koanf:"scoring"`
	Engine  EngineConfig  `koanf:"engine"`
	Page    PageConfig    `koanf:"page"`
	NATS    NATSConfig    `koanf:"nats"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	Heartbeat       Duration `koanf:"heartbeat"`  // SSE keep-alive
	BodyLimit       string   `koanf:"body_limit"` // e.g. "2M"
}

// RankingConfig bounds one ranking cycle and its scheduling. Zero sizes and
// timeouts take the orchestrator defaults.
type RankingConfig struct {
	Protocol       string   `koanf:"protocol"` // auto, pairs or list
	BatchSize      int      `koanf:"batch_size"`
	MaxCandidates  int      `koanf:"max_candidates"`
	BatchTimeout   Duration `koanf:"batch_timeout"`
	HardTimeout    Duration `koanf:"hard_timeout"`
	SingleShotMax  int      `koanf:"single_shot_max"`
	Debounce       Duration `koanf:"debounce"`
	InspectTimeout Duration `koanf:"inspect_timeout"`
	Preempt        bool     `koanf:"preempt"` // abort a stale conversation holding the engine
}

// EngineConfig selects the generation backend.
type EngineConfig struct {
	Provider      string  `koanf:"provider"` // ollama or openai
	Model         string  `koanf:"model"`
	BaseURL       string  `koanf:"base_url"`
	APIKey        Secret  `koanf:"api_key"`
	Temperature   float64 `koanf:"temperature"`
	MaxTokens     int     `koanf:"max_tokens"`
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// PageConfig controls how pages are fetched and how many links are kept.
type PageConfig struct {
	FetchTimeout  Duration `koanf:"fetch_timeout"`
	UserAgent     string   `koanf:"user_agent"`
	MaxBytes      int64    `koanf:"max_bytes"`
	MaxCandidates int      `koanf:"max_candidates"` // per page, before filtering
}

// NATSConfig controls snapshot publication over NATS. An empty URL disables
// it.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Name          string `koanf:"name"`
}

// Enabled reports whether a NATS URL is configured.
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.Heartbeat == 0 {
		cfg.Server.Heartbeat = Duration(30 * time.Second)
	}
	if cfg.Server.BodyLimit == "" {
		cfg.Server.BodyLimit = "2M"
	}

	// Ranking bounds left at zero take the orchestrator defaults
	if cfg.Ranking.Debounce == 0 {
		cfg.Ranking.Debounce = Duration(300 * time.Millisecond)
	}
	if cfg.Ranking.InspectTimeout == 0 {
		cfg.Ranking.InspectTimeout = Duration(20 * time.Second)
	}

	// Filter and scoring tunables merge over their package defaults
	fdef := filter.DefaultConfig()
	if cfg.Filter.MinTextLen == 0 {
		cfg.Filter.MinTextLen = fdef.MinTextLen
	}
	if cfg.Filter.MaxTextLen == 0 {
		cfg.Filter.MaxTextLen = fdef.MaxTextLen
	}
	if cfg.Filter.MaxHrefLen == 0 {
		cfg.Filter.MaxHrefLen = fdef.MaxHrefLen
	}
	cfg.Scoring = scorer.MergeConfig(scorer.DefaultConfig(), cfg.Scoring)

	// Engine defaults
	if cfg.Engine.Provider == "" {
		cfg.Engine.Provider = engine.ProviderOllama
	}

	// Page defaults
	if cfg.Page.MaxCandidates == 0 {
		cfg.Page.MaxCandidates = page.DefaultMaxCandidates
	}

	// NATS defaults
	if cfg.NATS.Name == "" {
		cfg.NATS.Name = "linkrank"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Page.MaxCandidates < 1 {
		return fmt.Errorf("page max_candidates must be positive: %d", c.Page.MaxCandidates)
	}
	switch c.Ranking.Protocol {
	case "", "auto", "pairs", "list":
	default:
		return fmt.Errorf("unknown ranking protocol %q (must be auto, pairs or list)", c.Ranking.Protocol)
	}
	if c.Ranking.BatchSize < 0 || c.Ranking.MaxCandidates < 0 || c.Ranking.SingleShotMax < 0 {
		return errors.New("ranking sizes must not be negative")
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	return c.LangChain().Validate()
}

// LangChain returns the engine configuration.
func (c *Config) LangChain() engine.Config {
	return engine.Config{
		Provider:      c.Engine.Provider,
		Model:         c.Engine.Model,
		BaseURL:       c.Engine.BaseURL,
		APIKey:        c.Engine.APIKey.Value(),
		Temperature:   c.Engine.Temperature,
		MaxTokens:     c.Engine.MaxTokens,
		RatePerSecond: c.Engine.RatePerSecond,
		Burst:         c.Engine.Burst,
	}
}

// Fetcher returns the page fetcher configuration.
func (c *Config) Fetcher() page.FetcherConfig {
	return page.FetcherConfig{
		Timeout:   c.Page.FetchTimeout.Duration(),
		UserAgent: c.Page.UserAgent,
		MaxBytes:  c.Page.MaxBytes,
	}
}
