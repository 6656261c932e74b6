package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/config"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {
	return newApp().Run(args)
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "blogd",
		Usage:   "moderated blog API server",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug|info|warn|error",
			Value:   "info",
			EnvVars: []string{"BLOG_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "text|json",
			Value:   "text",
			EnvVars: []string{"BLOG_LOG_FORMAT", "LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "storage",
			Usage:   "storage backend: memory, postgres or gorm",
			Value:   config.StorageMemory,
			EnvVars: []string{"BLOG_STORAGE", "STORAGE_TYPE"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "postgres:// url for postgres; sqlite:// or postgres:// url for gorm",
			EnvVars: []string{"BLOG_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "migrations-dir",
			Value:   "migrations",
			EnvVars: []string{"BLOG_MIGRATIONS_DIR"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   20,
			EnvVars: []string{"BLOG_MAX_DB_CONNECTIONS"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		migrateCmd,
	}
	return app
}

const serveCommandName = "serve"

var serveCmd = &cli.Command{
	Name:  serveCommandName,
	Usage: "run the HTTP API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":8000",
			EnvVars: []string{"BLOG_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics; empty disables",
			Value:   ":8001",
			EnvVars: []string{"BLOG_METRICS_LISTEN"},
		},
		&cli.StringSliceFlag{
			Name:    "allowed-origins",
			Usage:   "CORS allowed origins",
			Value:   cli.NewStringSlice("*"),
			EnvVars: []string{"BLOG_ALLOWED_ORIGINS"},
		},
		&cli.StringFlag{
			Name:     "jwt-secret",
			Usage:    "HMAC secret for access tokens",
			EnvVars:  []string{"BLOG_JWT_SECRET", "SECRET_KEY"},
			Required: true,
		},
		&cli.DurationFlag{
			Name:    "token-ttl",
			Value:   30 * time.Minute,
			EnvVars: []string{"BLOG_TOKEN_TTL"},
		},
		&cli.StringFlag{
			Name:    "profanity-provider",
			Usage:   "api or wordlist; api without a key falls back to wordlist",
			Value:   config.ProviderAPI,
			EnvVars: []string{"BLOG_PROFANITY_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "profanity-endpoint",
			Value:   config.DefaultProfanityEndpoint,
			EnvVars: []string{"BLOG_PROFANITY_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "profanity-api-key",
			EnvVars: []string{"BLOG_PROFANITY_API_KEY", "API_NINJAS_KEY"},
		},
		&cli.DurationFlag{
			Name:    "profanity-timeout",
			Value:   5 * time.Second,
			EnvVars: []string{"BLOG_PROFANITY_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "profanity-retries",
			Value:   0,
			EnvVars: []string{"BLOG_PROFANITY_RETRIES"},
		},
		&cli.BoolFlag{
			Name:    "profanity-fail-closed",
			Usage:   "treat content as profane when the classifier is unavailable",
			EnvVars: []string{"BLOG_PROFANITY_FAIL_CLOSED"},
		},
		&cli.StringSliceFlag{
			Name:    "profanity-words",
			Usage:   "word list for the wordlist provider",
			EnvVars: []string{"BLOG_PROFANITY_WORDS"},
		},
		&cli.StringFlag{
			Name:    "profanity-cache",
			Usage:   "verdict cache: mem, redis or none",
			Value:   config.CacheMemory,
			EnvVars: []string{"BLOG_PROFANITY_CACHE"},
		},
		&cli.IntFlag{
			Name:    "profanity-cache-size",
			Value:   10_000,
			EnvVars: []string{"BLOG_PROFANITY_CACHE_SIZE"},
		},
		&cli.DurationFlag{
			Name:    "profanity-cache-ttl",
			Value:   time.Hour,
			EnvVars: []string{"BLOG_PROFANITY_CACHE_TTL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			EnvVars: []string{"BLOG_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "gcloud-project",
			Usage:   "Vertex AI project; empty disables auto-replies",
			EnvVars: []string{"BLOG_GCLOUD_PROJECT", "GCLOUD_PROJECT_ID"},
		},
		&cli.StringFlag{
			Name:    "gcloud-location",
			Value:   config.DefaultLocation,
			EnvVars: []string{"BLOG_GCLOUD_LOCATION"},
		},
		&cli.StringFlag{
			Name:    "reply-model",
			Value:   config.DefaultModel,
			EnvVars: []string{"BLOG_REPLY_MODEL"},
		},
		&cli.StringFlag{
			Name:    "gcloud-credentials",
			Usage:   "service account key file; empty uses application default credentials",
			EnvVars: []string{"BLOG_GCLOUD_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS"},
		},
		&cli.Float64Flag{
			Name:    "reply-rate-limit",
			Usage:   "max reply generations per second; 0 is unlimited",
			Value:   5,
			EnvVars: []string{"BLOG_REPLY_RATE_LIMIT"},
		},
		&cli.BoolFlag{
			Name:    "strict-reply-errors",
			Usage:   "fail comment creation when the auto-reply cannot be generated",
			EnvVars: []string{"BLOG_STRICT_REPLY_ERRORS"},
		},
	},
	Action: runServe,
}

var migrateCmd = &cli.Command{
	Name:   "migrate",
	Usage:  "apply database migrations and exit",
	Action: runMigrate,
}

func configFromCLI(cctx *cli.Context) config.Config {
	cfg := config.Default()

	cfg.Log.Level = cctx.String("log-level")
	cfg.Log.Format = cctx.String("log-format")

	cfg.Storage.Type = cctx.String("storage")
	cfg.Storage.DatabaseURL = cctx.String("database-url")
	cfg.Storage.MigrationsDir = cctx.String("migrations-dir")
	cfg.Storage.MaxConns = cctx.Int("max-db-connections")

	if cctx.Command.Name != serveCommandName {
		return cfg
	}

	cfg.HTTP.Addr = cctx.String("bind")
	cfg.HTTP.MetricsAddr = cctx.String("metrics-listen")
	cfg.HTTP.AllowedOrigins = cctx.StringSlice("allowed-origins")

	cfg.Auth.JWTSecret = cctx.String("jwt-secret")
	cfg.Auth.TokenTTL = cctx.Duration("token-ttl")

	cfg.Profanity.Provider = cctx.String("profanity-provider")
	cfg.Profanity.Endpoint = cctx.String("profanity-endpoint")
	cfg.Profanity.APIKey = cctx.String("profanity-api-key")
	cfg.Profanity.Timeout = cctx.Duration("profanity-timeout")
	cfg.Profanity.MaxRetries = cctx.Int("profanity-retries")
	cfg.Profanity.FailClosed = cctx.Bool("profanity-fail-closed")
	cfg.Profanity.Words = cctx.StringSlice("profanity-words")
	cfg.Profanity.Cache = cctx.String("profanity-cache")
	cfg.Profanity.CacheSize = cctx.Int("profanity-cache-size")
	cfg.Profanity.CacheTTL = cctx.Duration("profanity-cache-ttl")
	cfg.Profanity.RedisURL = cctx.String("redis-url")

	cfg.Generator.ProjectID = cctx.String("gcloud-project")
	cfg.Generator.Location = cctx.String("gcloud-location")
	cfg.Generator.Model = cctx.String("reply-model")
	cfg.Generator.CredentialsFile = cctx.String("gcloud-credentials")
	cfg.Generator.RatePerSecond = cctx.Float64("reply-rate-limit")

	cfg.Moderation.StrictReplyErrors = cctx.Bool("strict-reply-errors")
	return cfg
}

func configLogger(cfg config.Log) *slog.Logger {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
