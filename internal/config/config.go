package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the submitter service
type Config struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	SettingsFile string `env:"SETTINGS_FILE"`
	MessagesFile string `env:"MESSAGES_FILE"`

	Server      ServerConfig      `envPrefix:"SERVER_"`
	Repository  RepositoryConfig  `envPrefix:"REPOSITORY_"`
	Management  ManagementConfig  `envPrefix:"MANAGEMENT_"`
	Database    DatabaseConfig    `envPrefix:"DATABASE_"`
	Redis       RedisConfig       `envPrefix:"REDIS_"`
	Cache       CacheConfig       `envPrefix:"CACHE_"`
	Cleanup     CleanupConfig     `envPrefix:"CLEANUP_"`
	Descriptors DescriptorsConfig `envPrefix:"DESCRIPTOR_"`

	// Settings come from SETTINGS_FILE, not from the environment
	Settings Settings
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `env:"HOST" envDefault:"127.0.0.1"`
	Port int    `env:"PORT" envDefault:"8080"`

	// AllowedOrigins are the browser origins accepted by CORS and the
	// progress stream. One "*" per pattern matches any run of characters.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:*,http://127.0.0.1:*"`
}

// RepositoryConfig holds the submission repository configuration
type RepositoryConfig struct {
	URL             string `env:"URL"`
	TempDir         string `env:"TEMP_DIR"`
	SourceExtension string `env:"SOURCE_EXTENSION" envDefault:".java"`
	AuthorDomain    string `env:"AUTHOR_DOMAIN" envDefault:"submitter.local"`
}

// ManagementConfig holds the student management system configuration
type ManagementConfig struct {
	URL     string        `env:"URL"`
	AuthURL string        `env:"AUTH_URL"`
	Course  string        `env:"COURSE"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN keeps the
// submission log in memory.
type DatabaseConfig struct {
	DSN          string `env:"DSN"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"2"`
}

// RedisConfig holds Redis configuration. An empty address selects the
// in-process cache.
type RedisConfig struct {
	Address  string `env:"ADDRESS"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// CacheConfig holds lookup cache configuration
type CacheConfig struct {
	TTL  time.Duration `env:"TTL" envDefault:"5m"`
	Size int           `env:"SIZE" envDefault:"256"`
}

// CleanupConfig holds the stale scratch directory sweeper configuration
type CleanupConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"10m"`
	MaxAge   time.Duration `env:"MAX_AGE" envDefault:"1h"`
}

// DescriptorsConfig holds IDE descriptor template configuration
type DescriptorsConfig struct {
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

// Load loads configuration from a .env file, the environment and the settings file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Repository.TempDir == "" {
		cfg.Repository.TempDir = os.TempDir()
	}
	if cfg.Management.AuthURL == "" {
		cfg.Management.AuthURL = cfg.Management.URL
	}

	settings, err := LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}
	cfg.Settings = *settings

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Repository.URL == "" {
		return fmt.Errorf("repository URL is required")
	}
	if _, err := url.Parse(c.Repository.URL); err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	if c.Management.URL == "" {
		return fmt.Errorf("management URL is required")
	}

	if !strings.HasPrefix(c.Repository.SourceExtension, ".") {
		return fmt.Errorf("source extension must start with a dot: %q", c.Repository.SourceExtension)
	}

	return c.Settings.Validate()
}

// SlogLevel maps LOG_LEVEL to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
