package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Providers supported by NewLangChain.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Default configuration values.
const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2:1b"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultMaxTokens   = 128
	defaultTemperature = 0.1
)

// Rate limiter defaults: a local engine tolerates frequent short calls.
const (
	defaultRatePerSecond = 4.0
	defaultBurst         = 2
)

// Config configures the langchaingo engine.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string `json:"-"` // never serialised
	Temperature float64
	MaxTokens   int

	// RatePerSecond bounds how often generations may start. Zero uses the
	// default; a negative value disables limiting.
	RatePerSecond float64
	Burst         int
}

// Validate checks the provider is known and required fields are present.
func (c Config) Validate() error {
	switch c.Provider {
	case "", ProviderOllama:
	case ProviderOpenAI:
		if c.APIKey == "" && c.BaseURL == "" {
			return fmt.Errorf("%w: openai provider requires an API key or a compatible base URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens must be >= 0", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be in [0,2]", ErrInvalidConfig)
	}
	return nil
}

// LangChain adapts a langchaingo model to Engine using its streaming
// callback.
type LangChain struct {
	model       llms.Model
	limiter     *rate.Limiter
	temperature float64
	maxTokens   int
	logger      *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelCauseFunc
}

// NewLangChain creates the provider model described by cfg.
func NewLangChain(cfg Config) (*LangChain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		name := cfg.Model
		if name == "" {
			name = defaultOpenAIModel
		}
		opts := []openai.Option{openai.WithModel(name)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		token := cfg.APIKey
		if token == "" {
			// OpenAI-compatible local servers ignore the token but the client
			// requires one.
			token = "unused"
		}
		opts = append(opts, openai.WithToken(token))
		model, err = openai.New(opts...)
	default:
		name := cfg.Model
		if name == "" {
			name = defaultOllamaModel
		}
		url := cfg.BaseURL
		if url == "" {
			url = defaultOllamaURL
		}
		model, err = ollama.New(ollama.WithModel(name), ollama.WithServerURL(url))
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s model: %w", providerName(cfg.Provider), err)
	}
	return NewWithModel(model, cfg), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model, cfg Config) *LangChain {
	temp := cfg.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	var limiter *rate.Limiter
	switch {
	case cfg.RatePerSecond < 0:
	case cfg.RatePerSecond == 0:
		limiter = rate.NewLimiter(rate.Limit(defaultRatePerSecond), defaultBurst)
	default:
		burst := cfg.Burst
		if burst <= 0 {
			burst = defaultBurst
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &LangChain{
		model:       model,
		limiter:     limiter,
		temperature: temp,
		maxTokens:   maxTokens,
		logger:      zap.NewNop(),
	}
}

// SetLogger sets the logger for this engine.
func (l *LangChain) SetLogger(logger *zap.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// StreamResponse implements Engine.
func (l *LangChain) StreamResponse(ctx context.Context, prompt string, onFragment FragmentFunc) error {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}
	}

	gctx, cancel, gen := l.begin(ctx)
	defer func() {
		l.end(gen)
		cancel(nil)
	}()

	start := time.Now()
	fragments := 0
	_, err := llms.GenerateFromSinglePrompt(gctx, l.model, prompt,
		llms.WithTemperature(l.temperature),
		llms.WithMaxTokens(l.maxTokens),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if len(chunk) == 0 {
				return nil
			}
			fragments++
			onFragment(string(chunk), false)
			return nil
		}),
	)
	if err != nil {
		if errors.Is(context.Cause(gctx), ErrCanceled) {
			l.logger.Debug("Generation canceled", zap.Int("fragments", fragments))
			return ErrCanceled
		}
		return fmt.Errorf("generating response: %w", err)
	}

	l.logger.Debug("Generation complete",
		zap.Int("fragments", fragments),
		zap.Duration("duration", time.Since(start)),
	)
	onFragment("", true)
	return nil
}

// Cancel implements Engine.
func (l *LangChain) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel(ErrCanceled)
	}
}

func (l *LangChain) begin(ctx context.Context) (context.Context, context.CancelCauseFunc, uint64) {
	gctx, cancel := context.WithCancelCause(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.cancel = cancel
	return gctx, cancel, l.gen
}

func (l *LangChain) end(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen {
		l.cancel = nil
	}
}

func providerName(p string) string {
	if p == "" {
		return ProviderOllama
	}
	return p
}
