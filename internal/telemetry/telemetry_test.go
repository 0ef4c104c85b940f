package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabledIsNoop(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.False(t, tel.Degraded())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Degraded())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"missing service name", func(c *Config) { c.Enabled = true; c.ServiceName = "" }, "service_name is required"},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "collector.example.com:4317" }, "insecure connections to remote endpoints"},
		{"sample rate", func(c *Config) { c.Enabled = true; c.SampleRate = 1.5 }, "sample_rate"},
		{"metric interval", func(c *Config) { c.Enabled = true; c.MetricInterval = 0 }, "metric_interval"},
		{"shutdown wait", func(c *Config) { c.Enabled = true; c.ShutdownWait = -time.Second }, "shutdown_wait"},
		{"insecure local is fine", func(c *Config) { c.Enabled = true }, ""},
		{"secure remote is fine", func(c *Config) {
			c.Enabled = true
			c.Insecure = false
			c.Endpoint = "collector.example.com:4317"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	local := []string{"localhost:4317", "127.0.0.1:4317", "::1", "localhost"}
	for _, ep := range local {
		cfg := &Config{Endpoint: ep}
		assert.True(t, cfg.isLocalEndpoint(), ep)
	}
	remote := []string{"collector.example.com:4317", "10.0.0.5:4317", "otel.internal"}
	for _, ep := range remote {
		cfg := &Config{Endpoint: ep}
		assert.False(t, cfg.isLocalEndpoint(), ep)
	}
}

func TestTestTelemetryRecordsSpans(t *testing.T) {
	tel := NewTestTelemetry()

	_, span := tel.Tracer("test").Start(context.Background(), "test.operation")
	span.End()

	tel.AssertSpanExists(t, "test.operation")
	assert.Nil(t, tel.SpanByName("missing"))
	assert.Len(t, tel.Spans(), 1)
}
