package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Embedding provider configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Resolver threshold configuration
	Resolver ResolverConfig `mapstructure:"resolver"`

	// Ingest configuration
	Ingest IngestConfig `mapstructure:"ingest"`

	// Schema overlay configuration
	Schema SchemaConfig `mapstructure:"schema"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, local, hashing
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ResolverConfig holds entity resolution thresholds and cache settings
type ResolverConfig struct {
	HighThreshold   float64 `mapstructure:"high_threshold"`
	LowThreshold    float64 `mapstructure:"low_threshold"`
	YearTolerance   int     `mapstructure:"year_tolerance"`
	FallbackCeiling float64 `mapstructure:"fallback_ceiling"`
	TopK            int     `mapstructure:"top_k"`
	CachePath       string  `mapstructure:"cache_path"`
	CacheTTLHours   int     `mapstructure:"cache_ttl_hours"`
}

// IngestConfig holds bulk ingestion configuration
type IngestConfig struct {
	BatchSize     int    `mapstructure:"batch_size"`
	Workers       int    `mapstructure:"workers"`
	CheckpointDir string `mapstructure:"checkpoint_dir"`
	AuditDir      string `mapstructure:"audit_dir"`
}

// SchemaConfig points at an optional relation-type overlay file
type SchemaConfig struct {
	OverlayPath string `mapstructure:"overlay_path"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	viper.SetDefault("embedding.dimensions", 384)

	// Resolver defaults. Thresholds are starting points for tuning.
	viper.SetDefault("resolver.high_threshold", 0.95)
	viper.SetDefault("resolver.low_threshold", 0.80)
	viper.SetDefault("resolver.year_tolerance", 1)
	viper.SetDefault("resolver.fallback_ceiling", 0.75)
	viper.SetDefault("resolver.top_k", 5)
	viper.SetDefault("resolver.cache_ttl_hours", 24)

	// Ingest defaults
	viper.SetDefault("ingest.batch_size", 75)
	viper.SetDefault("ingest.workers", 8)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("resolver.cache_path", fmt.Sprintf("%s/.rightsgraph/resolution_cache", home))
		viper.SetDefault("ingest.checkpoint_dir", fmt.Sprintf("%s/.rightsgraph/checkpoints", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if provider := os.Getenv("EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = provider
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		viper.Set("server.port", port)
	}

	// Schema overlay
	if path := os.Getenv("SCHEMA_OVERLAY_PATH"); path != "" {
		config.Schema.OverlayPath = path
	}
}
