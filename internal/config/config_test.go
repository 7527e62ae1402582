package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if !had {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL",
		"NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD", "NEO4J_DATABASE",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"CORS_ALLOWED_ORIGINS", "MIRROR_TIMEOUT",
	} {
		setEnv(t, key, "")
	}
}

func validConfig() Config {
	return Config{
		Port:          DefaultPort,
		Env:           DefaultEnv,
		LogFormat:     DefaultLogFormat,
		KafkaTopic:    DefaultKafkaTopic,
		MirrorTimeout: DefaultMirrorTimeout,
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.Neo4jURI)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, DefaultKafkaTopic, cfg.KafkaTopic)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, DefaultMirrorTimeout, cfg.MirrorTimeout)
}

func TestLoad_WithValidConfig(t *testing.T) {
	clearEnv(t)
	setEnv(t, "PORT", "9090")
	setEnv(t, "ENV", "production")
	setEnv(t, "LOG_FORMAT", "text")
	setEnv(t, "DATABASE_URL", "postgres://localhost/fraudguard")
	setEnv(t, "NEO4J_URI", "neo4j://localhost:7687")
	setEnv(t, "NEO4J_USER", "neo4j")
	setEnv(t, "NEO4J_PASSWORD", "secret")
	setEnv(t, "KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	setEnv(t, "CORS_ALLOWED_ORIGINS", "https://review.example.com")
	setEnv(t, "MIRROR_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "postgres://localhost/fraudguard", cfg.DatabaseURL)
	assert.Equal(t, "neo4j://localhost:7687", cfg.Neo4jURI)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://review.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.MirrorTimeout)
}

func TestLoad_InvalidMirrorTimeout(t *testing.T) {
	clearEnv(t)
	setEnv(t, "MIRROR_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIRROR_TIMEOUT")
}

func TestLoad_Neo4jWithoutCredentials(t *testing.T) {
	clearEnv(t)
	setEnv(t, "NEO4J_URI", "neo4j://localhost:7687")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEO4J_USER and NEO4J_PASSWORD are required")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"unknown env", func(c *Config) { c.Env = "prod" }, "ENV must be one of"},
		{"non-numeric port", func(c *Config) { c.Port = "http" }, "PORT must be a number"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "PORT must be a number"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT must be json or text"},
		{"neo4j missing password", func(c *Config) {
			c.Neo4jURI = "neo4j://localhost"
			c.Neo4jUser = "neo4j"
		}, "NEO4J_PASSWORD"},
		{"kafka without topic", func(c *Config) {
			c.KafkaBrokers = []string{"localhost:9092"}
			c.KafkaTopic = ""
		}, "KAFKA_TOPIC is required"},
		{"zero mirror timeout", func(c *Config) { c.MirrorTimeout = 0 }, "MIRROR_TIMEOUT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvList(t *testing.T) {
	setEnv(t, "TEST_LIST", " a ,b,, c ")
	setEnv(t, "TEST_BLANK_LIST", " , ")

	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("TEST_BLANK_LIST", []string{"x"}))
	assert.Nil(t, getEnvList("NONEXISTENT_VAR", nil))
}
