package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for memoir-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Remote generation service configuration
	AI AIConfig `yaml:"ai"`

	// Extraction pipeline configuration
	Extraction ExtractionConfig `yaml:"extraction"`

	// Per-user budget for remote generation calls
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Optional MCP server exposing the memory graph to agent tooling
	MCP MCPConfig `yaml:"mcp"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSURL is the JSON Web Key Set endpoint of the auth server.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"memoir"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"memoir_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// AIConfig holds the remote generation service settings.
// Provider is "openai" or "anthropic". When no API key is present the
// extraction pipeline is a no-op rather than an error.
type AIConfig struct {
	Provider        string  `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	BaseURL         string  `yaml:"base_url" env:"AI_BASE_URL" env-default:""`
	Model           string  `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	OpenAIAPIKey    string  `yaml:"-" env:"OPENAI_API_KEY"`    // Secret - not in YAML
	AnthropicAPIKey string  `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	Temperature     float64 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.2"`
}

// IsConfigured returns true if a credential for the selected provider exists.
func (c *AIConfig) IsConfigured() bool {
	switch c.Provider {
	case "anthropic":
		return c.AnthropicAPIKey != "" && c.Model != ""
	default:
		return c.OpenAIAPIKey != "" && c.Model != ""
	}
}

// ExtractionConfig holds tunables for the extraction pipeline.
type ExtractionConfig struct {
	// MinTextLength is the shortest answer worth an extraction call.
	MinTextLength int `yaml:"min_text_length" env:"EXTRACTION_MIN_TEXT_LENGTH" env-default:"20"`
	// MaxTextLength caps the sanitized text embedded in the prompt.
	MaxTextLength int `yaml:"max_text_length" env:"EXTRACTION_MAX_TEXT_LENGTH" env-default:"8000"`
	// RequestTimeout bounds a single remote extraction call.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"EXTRACTION_REQUEST_TIMEOUT" env-default:"60s"`
	// Workers is the size of the background extraction worker pool.
	Workers int `yaml:"workers" env:"EXTRACTION_WORKERS" env-default:"4"`
	// QueueSize bounds the extraction backlog; a full queue drops new jobs.
	QueueSize int `yaml:"queue_size" env:"EXTRACTION_QUEUE_SIZE" env-default:"64"`
	// ContextBudget caps the assembled context block, in characters.
	ContextBudget int `yaml:"context_budget" env:"EXTRACTION_CONTEXT_BUDGET" env-default:"2000"`
}

// RateLimitConfig holds the per-user fixed-window budget shared by every
// feature that calls the remote generation service.
type RateLimitConfig struct {
	MaxCalls int           `yaml:"max_calls" env:"RATE_LIMIT_MAX_CALLS" env-default:"30"`
	Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"60s"`
}

// MCPConfig controls the optional MCP server mounted at /mcp.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"false"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AI.Provider != "openai" && c.AI.Provider != "anthropic" {
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.Extraction.Workers < 1 {
		return fmt.Errorf("extraction workers must be at least 1")
	}
	if c.Extraction.QueueSize < 1 {
		return fmt.Errorf("extraction queue size must be at least 1")
	}
	if c.RateLimit.MaxCalls < 1 {
		return fmt.Errorf("rate limit max_calls must be at least 1")
	}
	if c.Auth.EnableVerification && c.Auth.JWKSURL == "" {
		return fmt.Errorf("auth jwks_url is required when verification is enabled")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
