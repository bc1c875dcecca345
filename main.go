package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"docsummarizer/internal/api"
	"docsummarizer/internal/config"
	"docsummarizer/internal/extract"
	"docsummarizer/internal/objectstore"
	"docsummarizer/internal/pipeline"
	"docsummarizer/internal/redis"
	"docsummarizer/internal/scheduler"
	"docsummarizer/internal/service/ai"
	"docsummarizer/internal/storage"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgPath := os.Getenv("DOCSUM_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config",
			"error", err,
			"path", cfgPath)
		os.Exit(1)
	}

	log := newLogger(cfg.BasicConfig.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	defer closeBackend()
	log.InfoContext(ctx, "Object store is initialized",
		"backend", cfg.Storage.Backend,
		"bucket", cfg.Storage.Bucket)

	summarizer, err := ai.New(ctx, ai.Config{
		Provider:  cfg.Provider.Name,
		Model:     cfg.Provider.Model,
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey(),
		MaxTokens: cfg.Provider.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("init summarizer: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithTimeout(cfg.BasicConfig.RequestTimeout()),
		pipeline.WithLogger(log),
	}

	var runs api.RunLister
	if cfg.Journal.Driver != config.DriverNone {
		db, err := storage.Open(cfg.Journal)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.ErrorContext(ctx, "Failed to close journal", "error", err)
			}
		}()

		journal, sched, err := initJournal(ctx, db, cfg.Journal, log)
		if err != nil {
			return err
		}
		defer sched.Stop()

		opts = append(opts, pipeline.WithRecorder(journal))
		runs = journal
	}

	p := pipeline.New(objectstore.NewAdapter(backend, log), extract.New(), summarizer, opts...)
	handlers := api.NewHandler(p, runs, cfg.BasicConfig.MaxUploadBytes, log)

	if !strings.EqualFold(cfg.BasicConfig.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))
	handlers.RegisterRoutes(router)

	return serve(ctx, router, cfg.BasicConfig.ServerAddress, log)
}

func initJournal(ctx context.Context, db *sql.DB, cfg config.JournalConfig, log *slog.Logger) (*storage.Journal, *scheduler.Scheduler, error) {
	if err := storage.Migrate(ctx, db, cfg.Driver, log); err != nil {
		return nil, nil, fmt.Errorf("migrate journal: %w", err)
	}
	journal := storage.NewJournal(db)

	sched := scheduler.New(ctx, journal, cfg.PruneSpec, cfg.Retention(), log)
	if err := sched.Start(); err != nil {
		return nil, nil, fmt.Errorf("start scheduler: %w", err)
	}
	log.InfoContext(ctx, "Journal is initialized",
		"driver", cfg.Driver,
		"retention", cfg.Retention(),
		"pruneSpec", cfg.PruneSpec)

	return journal, sched, nil
}

func newBackend(ctx context.Context, cfg *config.Config) (objectstore.Backend, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.BackendS3:
		backend, err := objectstore.NewS3Backend(ctx, objectstore.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, noop, nil
	case config.BackendFS:
		backend, err := objectstore.NewFSBackend(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return backend, noop, nil
	case config.BackendRedis:
		client, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewBackend(client, cfg.Redis.KeyPrefix), func() { client.Close() }, nil
	case config.BackendMemory:
		return objectstore.NewMemoryBackend(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

func serve(ctx context.Context, handler http.Handler, addr string, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "Server is listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	log.InfoContext(ctx, "Server is stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
