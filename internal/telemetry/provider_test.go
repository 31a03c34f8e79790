package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ServiceVersion = "1.4.0"
	cfg.Attributes = map[string]string{
		"deployment.environment": "dev",
		"linkrank.engine":        "ollama",
	}

	res, err := newResource(cfg)
	require.NoError(t, err)

	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, map[string]string{
		"service.name":           "linkrank",
		"service.version":        "1.4.0",
		"deployment.environment": "dev",
		"linkrank.engine":        "ollama",
	}, got)
}

func TestExporterTLS(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Nil(t, exporterTLS(cfg), "insecure export needs no TLS config")

	cfg.Insecure = false
	assert.Nil(t, exporterTLS(cfg), "default verification")

	cfg.TLSSkipVerify = true
	tlsCfg := exporterTLS(cfg)
	require.NotNil(t, tlsCfg)
	assert.True(t, tlsCfg.InsecureSkipVerify)
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "otel.example.com:4318", hostPort("https://otel.example.com:4318"))
	assert.Equal(t, "localhost:4318", hostPort("http://localhost:4318"))
	assert.Equal(t, "localhost:4317", hostPort("localhost:4317"))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, sampler(tt.rate).Description(), tt.want)
		assert.Contains(t, sampler(tt.rate).Description(), "ParentBased")
	}
}
