// Package config provides configuration management for the Palisade forum server.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Forum     ForumConfig     `mapstructure:"forum"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	SIEM      SIEMConfig      `mapstructure:"siem"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`

	// TrustProxyHeader reads the client IP from X-Forwarded-For when
	// running behind a reverse proxy.
	TrustProxyHeader bool `mapstructure:"trust_proxy_header"`
}

// DatabaseConfig holds database connection settings.
// The forum itself runs on embedded SQLite; the SIEM event log can
// additionally be archived to PostgreSQL for multi-node aggregation.
type DatabaseConfig struct {
	// Driver selects the SIEM event backend: "sqlite" (default, shares
	// the forum database) or "postgres" (central archive).
	Driver string `mapstructure:"driver"`

	// SQLite settings
	Path            string `mapstructure:"path"`
	JournalMode     string `mapstructure:"journal_mode"`
	BusyTimeout     int    `mapstructure:"busy_timeout"`
	CacheSize       int    `mapstructure:"cache_size"`
	SynchronousMode string `mapstructure:"synchronous_mode"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsEmbedded returns true if the SIEM log lives in the embedded database.
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings. Redis is optional and only
// used for cross-instance locking of access-key redemption.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds session and credential settings.
type AuthConfig struct {
	// SessionTTL is the sliding session lifetime.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// CookieName is the session cookie name.
	CookieName string `mapstructure:"cookie_name"`

	// CookieSecure marks the session cookie Secure (HTTPS only).
	CookieSecure bool `mapstructure:"cookie_secure"`

	// BcryptCost is the bcrypt work factor for password hashing.
	BcryptCost int `mapstructure:"bcrypt_cost"`

	// LockoutThreshold is the number of consecutive failed logins that
	// locks an account.
	LockoutThreshold int `mapstructure:"lockout_threshold"`

	// LockoutDuration is how long the account stays locked, measured
	// from the last failed attempt.
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`
}

// ForumConfig holds forum behavior settings.
type ForumConfig struct {
	// RequireRegistrationKey rejects registrations without an access key.
	// When false, keyless registration is allowed but grants no private
	// access.
	RequireRegistrationKey bool `mapstructure:"require_registration_key"`
}

// RateLimitConfig holds request throttling settings. Both limiters use
// sliding windows keyed by client IP.
type RateLimitConfig struct {
	// Enabled determines if rate limiting is active.
	Enabled bool `mapstructure:"enabled"`

	// GlobalMax is the request budget per window across all endpoints.
	GlobalMax int `mapstructure:"global_max"`

	// AuthMax is the attempt budget per window on login/register.
	// Successful attempts are refunded.
	AuthMax int `mapstructure:"auth_max"`

	// Window is the sliding window length for both limiters.
	Window time.Duration `mapstructure:"window"`
}

// SIEMConfig holds audit log settings.
type SIEMConfig struct {
	// Retention is the default purge cutoff.
	Retention time.Duration `mapstructure:"retention"`

	// QueryMaxLimit caps the page size of SIEM queries.
	QueryMaxLimit int `mapstructure:"query_max_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// BootstrapConfig holds first-run admin provisioning settings.
type BootstrapConfig struct {
	// Enabled creates the initial admin account on an empty database.
	Enabled bool `mapstructure:"enabled"`

	// AdminUsername and AdminEmail identify the initial admin.
	AdminUsername string `mapstructure:"admin_username"`
	AdminEmail    string `mapstructure:"admin_email"`

	// AdminPassword is the initial password. When empty a random
	// password is generated and printed once to the console.
	AdminPassword string `mapstructure:"admin_password"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with PALISADE_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PALISADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/palisade")
	}

	// Config file is optional - environment variables can be used instead.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 1*1024*1024) // 1MB
	v.SetDefault("server.trust_proxy_header", false)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/palisade.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.cache_size", -2000)
	v.SetDefault("database.synchronous_mode", "NORMAL")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "palisade")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "palisade")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Auth defaults
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_name", "sid")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.lockout_threshold", 5)
	v.SetDefault("auth.lockout_duration", 15*time.Minute)

	// Forum defaults
	v.SetDefault("forum.require_registration_key", false)

	// Rate limiting defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.global_max", 100)
	v.SetDefault("rate_limit.auth_max", 5)
	v.SetDefault("rate_limit.window", 15*time.Minute)

	// SIEM defaults
	v.SetDefault("siem.retention", 30*24*time.Hour)
	v.SetDefault("siem.query_max_limit", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Bootstrap defaults
	v.SetDefault("bootstrap.enabled", true)
	v.SetDefault("bootstrap.admin_username", "admin")
	v.SetDefault("bootstrap.admin_email", "admin@palisade.local")
	v.SetDefault("bootstrap.admin_password", "")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	}

	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 10 and 31")
	}
	if c.Auth.LockoutThreshold < 1 {
		return fmt.Errorf("auth.lockout_threshold must be at least 1")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.GlobalMax < 1 || c.RateLimit.AuthMax < 1 {
			return fmt.Errorf("rate_limit budgets must be at least 1")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive")
		}
	}

	if c.SIEM.QueryMaxLimit < 1 {
		return fmt.Errorf("siem.query_max_limit must be at least 1")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
