package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// streamingModel is a langchaingo model that streams fixed chunks.
type streamingModel struct {
	chunks []string
	err    error
	block  bool

	mu      sync.Mutex
	prompts []string
	opts    llms.CallOptions
	started chan struct{}
}

func (m *streamingModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	m.opts = opts
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, text.Text)
			}
		}
	}
	m.mu.Unlock()

	if m.started != nil {
		close(m.started)
	}

	var full strings.Builder
	for _, c := range m.chunks {
		full.WriteString(c)
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full.String()}}}, nil
}

func (m *streamingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type collector struct {
	mu        sync.Mutex
	fragments []string
	done      int
}

func (c *collector) on(text string, done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if done {
		c.done++
		return
	}
	c.fragments = append(c.fragments, text)
}

func TestLangChain_Streams(t *testing.T) {
	model := &streamingModel{chunks: []string{"0:", "8\n1:", "5\n"}}
	eng := NewWithModel(model, Config{RatePerSecond: -1, MaxTokens: 64, Temperature: 0.2})

	var c collector
	err := eng.StreamResponse(context.Background(), "rank these", c.on)
	require.NoError(t, err)

	assert.Equal(t, []string{"0:", "8\n1:", "5\n"}, c.fragments)
	assert.Equal(t, 1, c.done)
	assert.Equal(t, []string{"rank these"}, model.prompts)
	assert.Equal(t, 64, model.opts.MaxTokens)
	assert.InDelta(t, 0.2, model.opts.Temperature, 1e-9)
}

func TestLangChain_ErrorNeverSignalsDone(t *testing.T) {
	model := &streamingModel{chunks: []string{"garbage"}, err: errors.New("model crashed")}
	eng := NewWithModel(model, Config{RatePerSecond: -1})

	var c collector
	err := eng.StreamResponse(context.Background(), "p", c.on)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
	assert.Equal(t, 0, c.done)
	assert.Equal(t, []string{"garbage"}, c.fragments)
}

func TestLangChain_Cancel(t *testing.T) {
	model := &streamingModel{chunks: []string{"0:"}, block: true, started: make(chan struct{})}
	eng := NewWithModel(model, Config{RatePerSecond: -1})

	errs := make(chan error, 1)
	go func() {
		errs <- eng.StreamResponse(context.Background(), "p", func(string, bool) {})
	}()

	<-model.started
	eng.Cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrCanceled)
	case <-time.After(time.Second):
		t.Fatal("generation not canceled")
	}

	// Cancel with nothing in flight is a no-op.
	eng.Cancel()
}

func TestLangChain_ContextCancel(t *testing.T) {
	model := &streamingModel{block: true, started: make(chan struct{})}
	eng := NewWithModel(model, Config{RatePerSecond: -1})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- eng.StreamResponse(ctx, "p", func(string, bool) {})
	}()

	<-model.started
	cancel()

	err := <-errs
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default ollama", Config{}, false},
		{"explicit ollama", Config{Provider: ProviderOllama, Model: "qwen2.5:0.5b"}, false},
		{"openai with key", Config{Provider: ProviderOpenAI, APIKey: "sk-test"}, false},
		{"openai compatible server", Config{Provider: ProviderOpenAI, BaseURL: "http://localhost:8000/v1"}, false},
		{"openai without key", Config{Provider: ProviderOpenAI}, true},
		{"unknown provider", Config{Provider: "llamafile"}, true},
		{"negative tokens", Config{MaxTokens: -1}, true},
		{"temperature too high", Config{Temperature: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLangChain_Ollama(t *testing.T) {
	eng, err := NewLangChain(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.NotNil(t, eng.limiter)
}
