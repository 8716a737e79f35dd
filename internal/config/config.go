// Package config loads the daemon's configuration from environment
// variables: godotenv.Load() followed by getEnv-style helpers with
// fallback defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/workflowd needs to start the control server
// and the engine it will eventually drive.
type Config struct {
	Server ServerConfig
	Engine EngineConfig
	Audit  AuditConfig
	Auth   AuthConfig
}

// ServerConfig holds the control server's listen address and artifact
// directory.
type ServerConfig struct {
	Host            string
	Port            int
	ArtifactDir     string
	LogDir          string
	ShutdownTimeout time.Duration
}

// EngineConfig holds the engine's timing knobs.
type EngineConfig struct {
	PollInterval       time.Duration
	ResumeWaitInterval time.Duration
}

// AuditConfig gates the optional Postgres audit sink (internal/audit); an
// empty DSN leaves it a no-op.
type AuditConfig struct {
	DSN string
}

// AuthConfig gates the optional bearer-token auth middleware
// (internal/server/auth.go); an empty token disables auth entirely.
type AuthConfig struct {
	APIToken string
}

// Load reads Config from the environment, loading a local .env file first
// if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("WORKFLOWD_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("WORKFLOWD_PORT", 8787),
			ArtifactDir:     getEnv("WORKFLOWD_ARTIFACT_DIR", "./artifacts"),
			LogDir:          getEnv("WORKFLOWD_LOG_DIR", "./logs"),
			ShutdownTimeout: getEnvAsDuration("WORKFLOWD_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Engine: EngineConfig{
			PollInterval:       getEnvAsDuration("WORKFLOWD_POLL_INTERVAL", 500*time.Millisecond),
			ResumeWaitInterval: getEnvAsDuration("WORKFLOWD_RESUME_WAIT_INTERVAL", time.Second),
		},
		Audit: AuditConfig{
			DSN: getEnv("WORKFLOWD_AUDIT_DSN", ""),
		},
		Auth: AuthConfig{
			APIToken: getEnv("WORKFLOWD_API_TOKEN", ""),
		},
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
