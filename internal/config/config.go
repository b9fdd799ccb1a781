package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Token    TokenConfig    `yaml:"token"`
	Database DatabaseConfig `yaml:"database"`
	Resolver ResolverConfig `yaml:"resolver"`
	Kuaishou KuaishouConfig `yaml:"kuaishou"`
	Download DownloadConfig `yaml:"download"`
	Credits  CreditsConfig  `yaml:"credits"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// TokenConfig holds capability and session token signing secrets.
type TokenConfig struct {
	// Secret signs download capability tokens. The service refuses to
	// start without it: a guessable default would let anyone mint
	// download grants.
	Secret        string `yaml:"secret" envconfig:"TOKEN_SECRET"`
	SessionSecret string `yaml:"session_secret" envconfig:"SESSION_SECRET"`
}

// DatabaseConfig holds SQLite storage configuration.
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"DATABASE_PATH" default:"/data/grabvid.db"`
}

// ResolverConfig tunes the scrape/resolve layer.
type ResolverConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"RESOLVER_TIMEOUT" default:"30s"`
	CacheSize     int           `yaml:"cache_size" envconfig:"RESOLVER_CACHE_SIZE" default:"512"`
	CacheTTL      time.Duration `yaml:"cache_ttl" envconfig:"RESOLVER_CACHE_TTL" default:"10m"`
	BatchLimit    int           `yaml:"batch_limit" envconfig:"RESOLVER_BATCH_LIMIT" default:"10"`
	BatchInterval time.Duration `yaml:"batch_interval" envconfig:"RESOLVER_BATCH_INTERVAL" default:"500ms"`
}

// KuaishouConfig holds the signed upstream API settings.
type KuaishouConfig struct {
	APIBase   string `yaml:"api_base" envconfig:"KUAISHOU_API_BASE" default:"https://api.spapi.cn"`
	APISecret string `yaml:"api_secret" envconfig:"KUAISHOU_API_SECRET"`
}

// DownloadConfig holds CDN streaming configuration.
type DownloadConfig struct {
	ProbeTimeout  time.Duration `yaml:"probe_timeout" envconfig:"DOWNLOAD_PROBE_TIMEOUT" default:"10s"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"DOWNLOAD_READ_TIMEOUT" default:"60s"`
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"DOWNLOAD_MAX_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"DOWNLOAD_RETRY_DELAY" default:"2s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"DOWNLOAD_MAX_RETRY_DELAY" default:"30s"`
	UserAgent     string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// CreditsConfig holds billing defaults.
type CreditsConfig struct {
	// GrantValidMonths is the default expiry horizon for granted credits.
	GrantValidMonths int `yaml:"grant_valid_months" envconfig:"GRANT_VALID_MONTHS" default:"12"`
}

// AdminConfig holds the static admin API key.
type AdminConfig struct {
	APIKey string `yaml:"api_key" envconfig:"ADMIN_API_KEY"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}
	if c.Token.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Resolver.BatchLimit <= 0 {
		return fmt.Errorf("RESOLVER_BATCH_LIMIT must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
