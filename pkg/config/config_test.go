package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty mqtt broker", func(c *Config) { c.MQTTBroker = "" }},
		{"mqtt port out of range", func(c *Config) { c.MQTTPort = 70000 }},
		{"empty redis host", func(c *Config) { c.RedisHost = "" }},
		{"empty llm endpoint", func(c *Config) { c.LLMEndpoint = "" }},
		{"zero min interval", func(c *Config) { c.MinCycleIntervalMin = 0 }},
		{"max below min", func(c *Config) { c.MinCycleIntervalMin = 30; c.MaxCycleIntervalMin = 10 }},
		{"initial outside bounds", func(c *Config) { c.InitialCycleIntervalMin = 90 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HEARTH_MQTT_BROKER", "broker.local")
	t.Setenv("HEARTH_REDIS_PORT", "6380")
	t.Setenv("HEARTH_MIN_CYCLE_INTERVAL_MIN", "10")
	t.Setenv("HEARTH_LLM_MODEL", "llama3.2:8b")

	cfg := NewConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "broker.local", cfg.MQTTBroker)
	assert.Equal(t, 6380, cfg.RedisPort)
	assert.Equal(t, 10, cfg.MinCycleIntervalMin)
	assert.Equal(t, "llama3.2:8b", cfg.LLMModel)
}

func TestAddressHelpers(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTAddress())
	assert.Equal(t, "localhost:6379", cfg.RedisAddress())
	assert.Contains(t, cfg.PostgresConnectionString(), "dbname=hearth")
}
