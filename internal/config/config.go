package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Fabrica CLI.
type Config struct {
	API       APIConfig
	Poll      PollConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Artifacts ArtifactsConfig
}

type APIConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// RedisConfig is optional. When URL is empty the imported schema is kept
// in memory only.
type RedisConfig struct {
	URL string
}

// DatabaseConfig is optional. When URL is empty no job ledger is kept.
type DatabaseConfig struct {
	URL            string
	MigrationsPath string
}

type ArtifactsConfig struct {
	Backend string // "dir" or "minio"
	Dir     string
	Minio   MinioConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var validArtifactBackends = map[string]bool{
	"dir":   true,
	"minio": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: os.Getenv("FABRICA_BASE_URL"),
			APIKey:  os.Getenv("FABRICA_API_KEY"),
			Timeout: envDuration("FABRICA_TIMEOUT", 30*time.Second),
		},
		Poll: PollConfig{
			Interval:    envDuration("FABRICA_POLL_INTERVAL", time.Second),
			MaxAttempts: envInt("FABRICA_POLL_MAX_ATTEMPTS", 60),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			MigrationsPath: envString("FABRICA_MIGRATIONS_PATH", "migrations"),
		},
		Artifacts: ArtifactsConfig{
			Backend: envString("FABRICA_ARTIFACT_BACKEND", "dir"),
			Dir:     envString("FABRICA_ARTIFACT_DIR", "artifacts"),
			Minio: MinioConfig{
				Endpoint:  os.Getenv("MINIO_ENDPOINT"),
				AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
				SecretKey: os.Getenv("MINIO_SECRET_KEY"),
				Bucket:    envString("MINIO_BUCKET", "fabrica-artifacts"),
				UseSSL:    envBool("MINIO_USE_SSL", false),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("FABRICA_BASE_URL is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("FABRICA_BASE_URL must start with http:// or https://, got %q", c.API.BaseURL)
	}

	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("FABRICA_POLL_MAX_ATTEMPTS must be positive, got %d", c.Poll.MaxAttempts)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("FABRICA_POLL_INTERVAL must be positive, got %s", c.Poll.Interval)
	}

	if !validArtifactBackends[c.Artifacts.Backend] {
		return fmt.Errorf("FABRICA_ARTIFACT_BACKEND must be one of dir, minio; got %q", c.Artifacts.Backend)
	}
	if c.Artifacts.Backend == "minio" {
		if c.Artifacts.Minio.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when FABRICA_ARTIFACT_BACKEND is minio")
		}
		if c.Artifacts.Minio.AccessKey == "" || c.Artifacts.Minio.SecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when FABRICA_ARTIFACT_BACKEND is minio")
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
