package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Archive  ArchiveConfig
	Block    BlockConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // Use HTTPS-only cookies
	Environment string // "development", "production", "test"
	Debug       bool
	LogLevel    string
	SessionTTL  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ArchiveConfig points at the remote archive API that owns block records.
type ArchiveConfig struct {
	BaseURL string
	Timeout time.Duration
}

type BlockConfig struct {
	// DefaultReason is sent when the user leaves the reason blank. Empty omits the field.
	DefaultReason string
	IdleTTL       time.Duration
	RateLimit     int
}

func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Load reads configuration from the environment. Unparseable values fall back
// to their defaults; values that parse but make no sense are errors.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        env("SERVER_HOST", "0.0.0.0", parseString),
			Port:        env("SERVER_PORT", 8080, strconv.Atoi),
			Secure:      env("SERVER_SECURE", false, strconv.ParseBool),
			Environment: env("APP_ENV", "development", parseString),
			Debug:       env("DEBUG", false, strconv.ParseBool),
			LogLevel:    env("LOG_LEVEL", "info", parseString),
			SessionTTL:  env("SESSION_TTL", 30*24*time.Hour, parsePositiveDuration),
		},
		Database: DatabaseConfig{
			Host:     env("DB_HOST", "localhost", parseString),
			Port:     env("DB_PORT", 5432, strconv.Atoi),
			User:     env("DB_USER", "archive", parseString),
			Password: env("DB_PASSWORD", "archive", parseString),
			DBName:   env("DB_NAME", "ficarchive_web", parseString),
			SSLMode:  env("DB_SSLMODE", "disable", parseString),
		},
		Redis: RedisConfig{
			Host:     env("REDIS_HOST", "localhost", parseString),
			Port:     env("REDIS_PORT", 6379, strconv.Atoi),
			Password: env("REDIS_PASSWORD", "", parseString),
			DB:       env("REDIS_DB", 0, strconv.Atoi),
		},
		Archive: ArchiveConfig{
			BaseURL: env("ARCHIVE_API_BASE_URL", "http://localhost:3000/api/v1", parseString),
			Timeout: env("ARCHIVE_API_TIMEOUT", 30*time.Second, parsePositiveDuration),
		},
		Block: BlockConfig{
			DefaultReason: env("BLOCK_DEFAULT_REASON", "Blocked via profile", parseString),
			IdleTTL:       env("CONTROL_IDLE_TTL", 30*time.Minute, parsePositiveDuration),
			RateLimit:     env("BLOCK_RATE_LIMIT", 30, strconv.Atoi),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Archive.BaseURL == "" {
		errs = append(errs, errors.New("ARCHIVE_API_BASE_URL must not be empty"))
	} else if u, err := url.Parse(c.Archive.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("ARCHIVE_API_BASE_URL must be an absolute http(s) URL, got %q", c.Archive.BaseURL))
	}
	if c.Block.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("BLOCK_RATE_LIMIT must be positive, got %d", c.Block.RateLimit))
	}
	return errors.Join(errs...)
}

// env returns the parsed value of key, or def when it is unset or does not parse.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %s is not positive", d)
	}
	return d, nil
}
