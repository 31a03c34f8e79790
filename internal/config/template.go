package config

import (
	"errors"
	"fmt"
	"os"
)

// ErrConfigExists is returned by WriteTemplate when the file is present and
// overwrite is false.
var ErrConfigExists = errors.New("config file already exists")

// Template is the commented config.yaml written by `linkrank init`. Every
// value equals the built-in default.
const Template = `# linkrank configuration. Environment variables override these values,
# e.g. LINKRANK_ENGINE_MODEL or LINKRANK_RANKING_BATCH_TIMEOUT.

server:
  host: localhost
  port: 9090
  shutdown_timeout: 10s
  heartbeat: 30s
  body_limit: 2M

ranking:
  protocol: auto        # auto, pairs or list
  debounce: 300ms
  inspect_timeout: 20s
  preempt: false
  # batch_size: 5
  # max_candidates: 20
  # batch_timeout: 8s
  # hard_timeout: 30s
  # single_shot_max: 0  # auto uses the list protocol for batches this small

engine:
  provider: ollama      # ollama or openai
  # model: llama3.2:1b
  # base_url: http://localhost:11434
  # api_key: ""
  # rate_per_second: 2
  # burst: 1

page:
  max_candidates: 20
  # fetch_timeout: 15s
  # user_agent: Mozilla/5.0 (compatible; linkrank/1.0)
  # max_bytes: 5242880

filter:
  min_text_len: 3
  max_text_len: 150
  max_href_len: 130
  # extra_promo_terms: []
  # extra_tracking_hosts: []

# nats:
#   url: nats://localhost:4222
#   subject_prefix: linkrank.snapshots

logging:
  level: info
  format: json

telemetry:
  enabled: false
  endpoint: localhost:4317
`

// WriteTemplate writes Template to path with 0600 permissions. The default
// path's directory is created first.
func WriteTemplate(path string, overwrite bool) (string, error) {
	if path == "" {
		if err := EnsureConfigDir(); err != nil {
			return "", err
		}
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if err := validateConfigPath(path); err != nil {
		return "", err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, os.ErrExist) {
		return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err != nil {
		return "", fmt.Errorf("creating config file: %w", err)
	}
	if _, err := f.WriteString(Template); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing config file: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
