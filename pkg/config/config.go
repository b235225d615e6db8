// Package config provides unified configuration for visto.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (VISTO_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for visto.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Encoder       EncoderConfig       `yaml:"encoder"`
	Storage       StorageConfig       `yaml:"storage"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Search        SearchConfig        `yaml:"search"`
	Export        ExportConfig        `yaml:"export"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// EncoderConfig holds vision embedding service settings.
type EncoderConfig struct {
	URL        string `yaml:"url"`          // required
	Model      string `yaml:"model"`        // optional
	APIKey     string `yaml:"api_key"`      // optional
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
}

// StorageConfig holds embedding store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`

	// Ephemeral drops the corpus on shutdown. Useful for throwaway
	// experiment runs against a shared database.
	Ephemeral bool `yaml:"ephemeral"` // default: false
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN                 string `yaml:"dsn"`
	DSNFile             string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns            int32  `yaml:"max_conns"`
	MinConns            int32  `yaml:"min_conns"`
	EnsureSchemaOnStart bool   `yaml:"ensure_schema_on_start"` // default: true
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	ImageDir string `yaml:"image_dir"` // required for ingest mode
}

// SearchConfig holds similarity search settings.
type SearchConfig struct {
	TopK int `yaml:"top_k"` // default: 10
}

// ExportConfig holds result export settings.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"` // default: "output"
}

// AuthConfig holds authentication settings for serve mode.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey", "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`      // JWT settings for type=jwt

	// RateLimitRPM caps requests per minute per authenticated subject.
	// Zero disables rate limiting.
	RateLimitRPM int `yaml:"rate_limit_rpm"` // default: 0
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSURL  string `yaml:"jwks_url"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns:            10,
				MinConns:            2,
				EnsureSchemaOnStart: true,
			},
		},
		Search: SearchConfig{
			TopK: 10,
		},
		Export: ExportConfig{
			OutputDir: "output",
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
