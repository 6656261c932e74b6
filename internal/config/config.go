package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageGorm     = "gorm"

	ProviderAPI      = "api"
	ProviderWordlist = "wordlist"

	CacheNone   = "none"
	CacheMemory = "mem"
	CacheRedis  = "redis"

	DefaultProfanityEndpoint = "https://api.api-ninjas.com/v1/profanityfilter"
	DefaultModel             = "gemini-1.5-flash-002"
	DefaultLocation          = "us-central1"
)

type Config struct {
	HTTP       HTTP
	Storage    Storage
	Auth       Auth
	Profanity  Profanity
	Generator  Generator
	Moderation Moderation
	Log        Log
}

type HTTP struct {
	Addr           string
	MetricsAddr    string
	AllowedOrigins []string
}

type Storage struct {
	// Type is one of memory, postgres or gorm
	Type          string
	DatabaseURL   string
	MigrationsDir string
	MaxConns      int
}

type Auth struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type Profanity struct {
	// Provider is api or wordlist; api without a key falls back to wordlist
	Provider   string
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	// FailClosed treats an unreachable classifier as "profane"
	FailClosed bool
	Words      []string

	Cache     string
	CacheSize int
	CacheTTL  time.Duration
	RedisURL  string
}

type Generator struct {
	// an empty ProjectID disables auto-replies
	ProjectID       string
	Location        string
	Model           string
	CredentialsFile string
	RatePerSecond   float64
	Burst           int
}

type Moderation struct {
	// StrictReplyErrors returns reply generation failures to the caller
	// instead of skipping the auto-reply
	StrictReplyErrors bool
}

type Log struct {
	Level  string
	Format string
}

// Default returns a configuration suitable for local development
func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:           ":8000",
			MetricsAddr:    ":8001",
			AllowedOrigins: []string{"*"},
		},
		Storage: Storage{
			Type:          StorageMemory,
			MigrationsDir: "migrations",
			MaxConns:      20,
		},
		Auth: Auth{
			TokenTTL: 30 * time.Minute,
		},
		Profanity: Profanity{
			Provider:  ProviderAPI,
			Endpoint:  DefaultProfanityEndpoint,
			Timeout:   5 * time.Second,
			Cache:     CacheMemory,
			CacheSize: 10_000,
			CacheTTL:  time.Hour,
		},
		Generator: Generator{
			Location:      DefaultLocation,
			Model:         DefaultModel,
			RatePerSecond: 5,
			Burst:         5,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks option combinations that would only fail at runtime
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Type {
	case StorageMemory:
	case StoragePostgres, StorageGorm:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("storage %q requires a database url", c.Storage.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}

	switch c.Profanity.Provider {
	case ProviderAPI:
		if c.Profanity.Endpoint == "" {
			errs = append(errs, errors.New("profanity endpoint is required"))
		}
	case ProviderWordlist:
	default:
		errs = append(errs, fmt.Errorf("unknown profanity provider %q", c.Profanity.Provider))
	}
	if c.Profanity.Timeout <= 0 {
		errs = append(errs, errors.New("profanity timeout must be positive"))
	}
	if c.Profanity.MaxRetries < 0 {
		errs = append(errs, errors.New("profanity retries cannot be negative"))
	}
	switch c.Profanity.Cache {
	case CacheNone, "":
	case CacheMemory:
		if c.Profanity.CacheSize <= 0 {
			errs = append(errs, errors.New("profanity cache size must be positive"))
		}
	case CacheRedis:
		if c.Profanity.RedisURL == "" {
			errs = append(errs, errors.New("redis cache requires a redis url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown profanity cache %q", c.Profanity.Cache))
	}

	if c.Generator.ProjectID != "" {
		if c.Generator.Model == "" || c.Generator.Location == "" {
			errs = append(errs, errors.New("generator model and location are required"))
		}
		if c.Generator.RatePerSecond < 0 {
			errs = append(errs, errors.New("generator rate cannot be negative"))
		}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ParseLevel maps debug|info|warn|error to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
