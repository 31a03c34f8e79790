package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/linkrank/internal/config"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid telemetry config")

// Config is the telemetry section of config.yaml.
type Config struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	// Insecure disables TLS. Only loopback collectors may be insecure.
	Insecure bool `koanf:"insecure"`
	// Protocol is "grpc" (default) or "http/protobuf".
	Protocol      string `koanf:"protocol"`
	TLSSkipVerify bool   `koanf:"tls_skip_verify"`
	// Attributes are extra resource attributes, e.g. deployment.environment.
	Attributes map[string]string `koanf:"attributes"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Metrics    MetricsConfig     `koanf:"metrics"`
	Shutdown   ShutdownConfig    `koanf:"shutdown"`
}

// SamplingConfig sets the root span sampling ratio.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"`
}

type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
}

type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns telemetry defaults. Export is off until a
// collector is configured (LINKRANK_TELEMETRY_ENABLED=true or the
// telemetry section of config.yaml).
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:       "localhost:4317",
		ServiceName:    "linkrank",
		ServiceVersion: "0.1.0",
		Protocol:       "grpc",
		Insecure:       true,
		Sampling:       SamplingConfig{Rate: 1.0},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{Timeout: config.Duration(5 * time.Second)},
	}
}

// Validate checks an enabled config. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.check(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) check() error {
	switch {
	case c.Endpoint == "":
		return errors.New("endpoint is required")
	case c.ServiceName == "":
		return errors.New("service_name is required")
	case c.ServiceVersion == "":
		return errors.New("service_version is required")
	case c.Insecure && !isLoopback(c.Endpoint):
		return fmt.Errorf("insecure export to %s is not allowed; set insecure=false or use a loopback collector", c.Endpoint)
	}
	switch c.Protocol {
	case "", "grpc", protocolHTTP:
	default:
		return fmt.Errorf("protocol must be grpc or %s, got %q", protocolHTTP, c.Protocol)
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be within [0, 1], got %g", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return errors.New("metrics.export_interval must be positive")
	}
	if c.Shutdown.Timeout.Duration() <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}

// isLoopback reports whether endpoint names this machine. The port and
// an http(s) scheme are optional.
func isLoopback(endpoint string) bool {
	host := hostPort(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
