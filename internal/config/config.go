// Package config loads runtime configuration from YAML with sane defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort      = 3200
	defaultEnv       = "development"
	defaultDBHost    = "127.0.0.1"
	defaultDBPort    = 3306
	defaultDBUser    = "root"
	defaultDBName    = "creatorlink"
	defaultRedisHost = "localhost"
	defaultRedisPort = 6379

	defaultSessionTTLSeconds = 604800 // 7 days
	defaultMaxSessions       = 5

	defaultRateWindowSeconds     = 60
	defaultRateMax               = 100
	defaultAuthRateWindowSeconds = 900
	defaultAuthRateMax           = 10
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int             `yaml:"port"`
	Env            string          `yaml:"env"` // "development" | "production"
	DSN            string          `yaml:"dsn"` // MySQL DSN
	Database       DatabaseConfig  `yaml:"database"`
	Redis          RedisConfig     `yaml:"redis"`
	JWTSecret      string          `yaml:"jwt_secret"`
	EncryptSecret  string          `yaml:"encryption_secret"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	Session        SessionConfig   `yaml:"session"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	URL                   string `yaml:"url"`
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	DB                    int    `yaml:"db"`
	TLS                   bool   `yaml:"tls"`
	MaxRetryBackoffMillis int    `yaml:"max_retry_backoff_ms"`
}

type SessionConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
	MaxPerUser int `yaml:"max_per_user"`
}

type RateLimitConfig struct {
	WindowSeconds     int   `yaml:"window_seconds"`
	Max               int64 `yaml:"max"`
	AuthWindowSeconds int   `yaml:"auth_window_seconds"`
	AuthMax           int64 `yaml:"auth_max"`
}

// Load reads the YAML config at path and applies defaults. A missing file is
// not an error; everything has a default except secrets.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if c.Database.Host == "" {
		c.Database.Host = defaultDBHost
	}
	if c.Database.Port <= 0 {
		c.Database.Port = defaultDBPort
	}
	if c.Database.User == "" {
		c.Database.User = defaultDBUser
	}
	if c.Database.Name == "" {
		c.Database.Name = defaultDBName
	}
	if c.Redis.Host == "" {
		c.Redis.Host = defaultRedisHost
	}
	if c.Redis.Port <= 0 {
		c.Redis.Port = defaultRedisPort
	}
	if c.Session.TTLSeconds <= 0 {
		c.Session.TTLSeconds = defaultSessionTTLSeconds
	}
	if c.Session.MaxPerUser <= 0 {
		c.Session.MaxPerUser = defaultMaxSessions
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = defaultRateWindowSeconds
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = defaultRateMax
	}
	if c.RateLimit.AuthWindowSeconds <= 0 {
		c.RateLimit.AuthWindowSeconds = defaultAuthRateWindowSeconds
	}
	if c.RateLimit.AuthMax <= 0 {
		c.RateLimit.AuthMax = defaultAuthRateMax
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// ResolveDSN builds the MySQL DSN from the explicit dsn field or the
// structured database block.
func (c *AppConfig) ResolveDSN() string {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}

// RedisAddr returns host:port for the structured redis block.
func (c *AppConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// SessionTTL returns the configured sliding window as a duration.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSeconds) * time.Second
}

// RedisMaxRetryBackoff returns the reconnect backoff cap (0 = library default).
func (c *AppConfig) RedisMaxRetryBackoff() time.Duration {
	return time.Duration(c.Redis.MaxRetryBackoffMillis) * time.Millisecond
}
