package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/linkrank/internal/prompt"
	"github.com/fyrsmithlabs/linkrank/internal/rankparse"
)

// Protocol modes.
const (
	ModeAuto  = "auto"
	ModePairs = rankparse.PairsName
	ModeList  = rankparse.ListName
)

// Defaults.
const (
	DefaultBatchSize     = 5
	DefaultMaxCandidates = 20
	DefaultBatchTimeout  = 8 * time.Second
	DefaultHardTimeout   = 30 * time.Second
	DefaultSingleShotMax = 0
)

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid orchestrator config")

// Config bounds one ranking cycle.
type Config struct {
	// BatchSize is the number of candidates per engine conversation.
	BatchSize int
	// MaxCandidates caps how many filtered candidates are sent to the engine.
	MaxCandidates int
	// BatchTimeout is the soft limit: a batch with no resolution by then
	// falls back.
	BatchTimeout time.Duration
	// HardTimeout ends a batch that is still resolving.
	HardTimeout time.Duration
	// SingleShotMax is the largest batch ranked with the list protocol in
	// auto mode. Zero keeps auto mode on the pairs protocol, which carries
	// graded ranks.
	SingleShotMax int
	// Protocol is auto, pairs or list.
	Protocol string
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{
		BatchSize:     DefaultBatchSize,
		MaxCandidates: DefaultMaxCandidates,
		BatchTimeout:  DefaultBatchTimeout,
		HardTimeout:   DefaultHardTimeout,
		SingleShotMax: DefaultSingleShotMax,
		Protocol:      ModeAuto,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxCandidates == 0 {
		c.MaxCandidates = def.MaxCandidates
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = def.BatchTimeout
	}
	if c.HardTimeout == 0 {
		c.HardTimeout = def.HardTimeout
		if c.HardTimeout < c.BatchTimeout {
			c.HardTimeout = c.BatchTimeout
		}
	}
	if c.Protocol == "" {
		c.Protocol = def.Protocol
	}
	return c
}

// Validate checks the bounds are coherent.
func (c Config) Validate() error {
	if c.BatchSize < 1 || c.BatchSize > prompt.MaxBatch {
		return fmt.Errorf("%w: batch_size must be in [1,%d], got %d", ErrInvalidConfig, prompt.MaxBatch, c.BatchSize)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("%w: max_candidates must be > 0, got %d", ErrInvalidConfig, c.MaxCandidates)
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("%w: batch_timeout must be > 0", ErrInvalidConfig)
	}
	if c.HardTimeout < c.BatchTimeout {
		return fmt.Errorf("%w: hard_timeout (%s) must be >= batch_timeout (%s)", ErrInvalidConfig, c.HardTimeout, c.BatchTimeout)
	}
	if c.SingleShotMax < 0 {
		return fmt.Errorf("%w: single_shot_max must be >= 0, got %d", ErrInvalidConfig, c.SingleShotMax)
	}
	switch c.Protocol {
	case ModeAuto, ModePairs, ModeList:
	default:
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfig, c.Protocol)
	}
	return nil
}

// protocolFor picks the ranking protocol for a batch of n candidates.
func (c Config) protocolFor(n int) rankparse.Protocol {
	switch c.Protocol {
	case ModeList:
		return rankparse.List{}
	case ModePairs:
		return rankparse.Pairs{}
	}
	if n <= c.SingleShotMax {
		return rankparse.List{}
	}
	return rankparse.Pairs{}
}
