package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/auth"
	"github.com/MosinFAM/moderated-blog/internal/config"
	"github.com/MosinFAM/moderated-blog/internal/db"
	"github.com/MosinFAM/moderated-blog/internal/handlers"
	"github.com/MosinFAM/moderated-blog/internal/moderation"
	"github.com/MosinFAM/moderated-blog/internal/profanity"
	"github.com/MosinFAM/moderated-blog/internal/replygen"
	"github.com/MosinFAM/moderated-blog/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
)

func runServe(cctx *cli.Context) error {
	cfg := configFromCLI(cctx)
	logger := configLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	classifier, closeClassifier, err := buildClassifier(ctx, cfg.Profanity, logger)
	if err != nil {
		return err
	}
	defer closeClassifier()

	generator, closeGenerator, err := buildGenerator(ctx, cfg.Generator, logger)
	if err != nil {
		return err
	}
	defer closeGenerator()

	mod := moderation.NewService(store, classifier, generator, moderation.Options{
		StrictReplyErrors: cfg.Moderation.StrictReplyErrors,
		Logger:            logger,
	})
	authSvc := auth.NewService(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	h := handlers.New(store, mod, authSvc, logger)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h.Router(cfg.HTTP.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.HTTP.MetricsAddr != "" {
		go func() {
			if err := runMetrics(cfg.HTTP.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", "err", err)
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting api server", "addr", cfg.HTTP.Addr, "storage", cfg.Storage.Type)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return (&http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}).ListenAndServe()
}

func runMigrate(cctx *cli.Context) error {
	cfg := configFromCLI(cctx)
	logger := configLogger(cfg.Log)

	switch cfg.Storage.Type {
	case config.StoragePostgres:
		conn, err := db.Connect(cctx.Context, cfg.Storage.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := db.Migrate(conn, cfg.Storage.MigrationsDir); err != nil {
			return err
		}
	case config.StorageGorm:
		gdb, err := db.OpenGorm(cfg.Storage.DatabaseURL, cfg.Storage.MaxConns)
		if err != nil {
			return err
		}
		store, err := storage.NewGormStorage(gdb)
		if err != nil {
			return err
		}
		defer store.Close()
	default:
		return fmt.Errorf("storage %q has no migrations", cfg.Storage.Type)
	}

	logger.Info("migrations applied", "storage", cfg.Storage.Type)
	return nil
}

func openStorage(ctx context.Context, cfg config.Storage, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.Type {
	case config.StoragePostgres:
		conn, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		conn.SetMaxOpenConns(cfg.MaxConns)
		if err := db.Migrate(conn, cfg.MigrationsDir); err != nil {
			conn.Close()
			return nil, err
		}
		return storage.NewPostgresStorage(conn, cfg.DatabaseURL), nil
	case config.StorageGorm:
		gdb, err := db.OpenGorm(cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return storage.NewGormStorage(gdb)
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		return storage.NewMemoryStorage(), nil
	}
}

func buildClassifier(ctx context.Context, cfg config.Profanity, logger *slog.Logger) (profanity.Classifier, func() error, error) {
	noop := func() error { return nil }

	var classifier profanity.Classifier
	if cfg.Provider == config.ProviderAPI && cfg.APIKey != "" {
		api, err := profanity.NewAPIClassifier(profanity.APIConfig{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			FailClosed: cfg.FailClosed,
			Logger:     logger,
		})
		if err != nil {
			return nil, noop, err
		}
		classifier = api
	} else {
		if cfg.Provider == config.ProviderAPI {
			logger.Warn("no profanity API key configured, using the built-in word list")
		}
		classifier = profanity.NewWordlistClassifier(cfg.Words)
	}

	switch cfg.Cache {
	case config.CacheMemory:
		return profanity.NewCachedClassifier(classifier, profanity.NewMemVerdictCache(cfg.CacheSize, cfg.CacheTTL), logger), noop, nil
	case config.CacheRedis:
		rc, err := profanity.NewRedisVerdictCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to redis: %w", err)
		}
		return profanity.NewCachedClassifier(classifier, rc, logger), rc.Close, nil
	default:
		return classifier, noop, nil
	}
}

func buildGenerator(ctx context.Context, cfg config.Generator, logger *slog.Logger) (replygen.Generator, func() error, error) {
	if cfg.ProjectID == "" {
		logger.Warn("no generator project configured, auto-replies are disabled")
		return nil, func() error { return nil }, nil
	}
	vg, err := replygen.NewVertexGenerator(ctx, replygen.VertexConfig{
		ProjectID:       cfg.ProjectID,
		Location:        cfg.Location,
		Model:           cfg.Model,
		CredentialsFile: cfg.CredentialsFile,
		Logger:          logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating reply generator: %w", err)
	}
	return replygen.NewRateLimited(vg, cfg.RatePerSecond, cfg.Burst), vg.Close, nil
}
