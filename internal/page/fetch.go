package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBodyBytes = 5 * 1024 * 1024
	defaultUserAgent    = "Mozilla/5.0 (compatible; linkrank/1.0)"
)

// Fetcher downloads pages over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

// NewFetcher creates a Fetcher. Zero fields use defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBodyBytes
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
	}
}

// Fetch downloads rawURL and returns a handle carrying its content. The
// handle URL is the final URL after redirects.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Handle, error) {
	if !isHTTP(rawURL) {
		return Handle{}, fmt.Errorf("URL must be http or https: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Handle{}, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Handle{}, fmt.Errorf("failed to read body: %w", err)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return Handle{
		URL:         final,
		Content:     body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
