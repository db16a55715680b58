// Package config loads service configuration from config.yaml and
// DEVGENIUS_ environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override. Nested keys use "__",
// e.g. DEVGENIUS_PROVIDER__API_KEY.
const EnvPrefix = "DEVGENIUS_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Auth       AuthConfig       `koanf:"auth"`
	Provider   ProviderConfig   `koanf:"provider"`
	Generation GenerationConfig `koanf:"generation"`
	Storage    StorageConfig    `koanf:"storage"`
	Artifacts  ArtifactsConfig  `koanf:"artifacts"`
	Render     RenderConfig     `koanf:"render"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type AuthConfig struct {
	// APIKeys holds SHA-256 hashes of accepted keys. An empty list disables auth.
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

type ProviderConfig struct {
	Name            string  `koanf:"name"`
	Type            string  `koanf:"type"` // anthropic, gemini
	APIKey          string  `koanf:"api_key"`
	BaseURL         string  `koanf:"base_url"`
	Model           string  `koanf:"model"`
	MaxOutputTokens int     `koanf:"max_output_tokens"`
	Temperature     float32 `koanf:"temperature"`
	ReasoningBudget int     `koanf:"reasoning_budget"`
}

// GenerationConfig bounds the continuation and retry loops.
type GenerationConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	RetryMax    int           `koanf:"retry_max"`
	RetryBase   time.Duration `koanf:"retry_base"`
}

type StorageConfig struct {
	Type   string `koanf:"type"` // sqlite, postgres, memory
	// Driver overrides the database/sql driver name (sqlite, pgx).
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type ArtifactsConfig struct {
	Type string   `koanf:"type"` // memory, fs, s3
	Dir  string   `koanf:"dir"`
	S3   S3Config `koanf:"s3"`
}

type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`

	// PublicBaseURL is used to build CloudFormation template URLs.
	PublicBaseURL string `koanf:"public_base_url"`
}

type RenderConfig struct {
	KrokiURL  string        `koanf:"kroki_url"`
	CacheSize int           `koanf:"cache_size"`
	Timeout   time.Duration `koanf:"timeout"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":                8080,
	"server.request_timeout":     "10m",
	"provider.type":              "anthropic",
	"provider.name":              "anthropic",
	"provider.model":             "claude-3-7-sonnet-20250219",
	"provider.max_output_tokens": 64000,
	"provider.temperature":       0,
	"provider.reasoning_budget":  4096,
	"generation.max_attempts":    4,
	"generation.retry_max":       3,
	"generation.retry_base":      "1s",
	"storage.type":               "memory",
	"artifacts.type":             "memory",
	"artifacts.dir":              "artifacts",
	"render.kroki_url":           "https://kroki.io",
	"render.cache_size":          128,
	"render.timeout":             "30s",
	"telemetry.service_name":     "artifact-gateway",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), then applies environment
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Provider.APIKey = substituteEnvVars(cfg.Provider.APIKey)
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)
	cfg.Artifacts.S3.AccessKey = substituteEnvVars(cfg.Artifacts.S3.AccessKey)
	cfg.Artifacts.S3.SecretKey = substituteEnvVars(cfg.Artifacts.S3.SecretKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the generation loop cannot run with.
func (c *Config) Validate() error {
	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be at least 1, got %d", c.Generation.MaxAttempts)
	}
	if c.Generation.RetryMax < 1 {
		return fmt.Errorf("generation.retry_max must be at least 1, got %d", c.Generation.RetryMax)
	}
	if c.Generation.RetryBase <= 0 {
		return fmt.Errorf("generation.retry_base must be positive, got %s", c.Generation.RetryBase)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
