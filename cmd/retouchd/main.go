// Command retouchd runs the image-edit job server: the HTTP dispatch and
// status API in front, the worker pool behind it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/api"
	"github.com/retouchd/retouch/edit"
	"github.com/retouchd/retouch/editor"
	"github.com/retouchd/retouch/engine"
	"github.com/retouchd/retouch/job"
	"github.com/retouchd/retouch/store/memory"
	"github.com/retouchd/retouch/store/postgres"
	redisstore "github.com/retouchd/retouch/store/redis"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "retouchd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// The edit backend credential is a startup requirement, not a
	// per-request one.
	if cfg.Editor.APIKey == "" {
		return retouch.ErrMissingAPIKey
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	eng, err := engine.New(store,
		engine.WithLogger(logger),
		engine.WithConfig(retouch.Config{
			Concurrency:       cfg.Engine.Concurrency,
			Queues:            cfg.Engine.Queues,
			PollInterval:      cfg.Engine.PollInterval,
			ShutdownTimeout:   cfg.Server.ShutdownTimeout,
			HeartbeatInterval: cfg.Engine.HeartbeatInterval,
			StaleJobThreshold: cfg.Engine.StaleJobThreshold,
		}),
	)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	queue := "default"
	if len(cfg.Engine.Queues) > 0 {
		queue = cfg.Engine.Queues[0]
	}

	backend := editor.NewHTTPBackend(cfg.Editor.Endpoint, cfg.Editor.APIKey)
	svc := edit.NewService(eng, backend,
		edit.WithLogger(logger),
		edit.WithConfig(edit.Config{
			MaxAttempts:      cfg.Edit.MaxAttempts,
			BackoffBase:      cfg.Edit.BackoffBase,
			SettleDelay:      cfg.Edit.SettleDelay,
			PollInterval:     cfg.Edit.PollInterval,
			EstimatedSeconds: cfg.Edit.EstimatedSeconds,
			MaxRetries:       cfg.Edit.MaxRetries,
			Queue:            queue,
		}),
	)

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewHandler(svc, eng, api.WithLogger(logger)).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", slog.Any("error", err))
		}
		return eng.Stop(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(cfg config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func openStore(ctx context.Context, cfg config, logger *slog.Logger) (job.Store, error) {
	switch cfg.Store.Driver {
	case "", "memory":
		logger.Warn("using in-memory store, jobs will not survive restarts")
		return memory.New(), nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		return redisstore.New(client, redisstore.WithLogger(logger)), nil
	case "postgres":
		return postgres.New(ctx, cfg.Store.Postgres.URL, postgres.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
