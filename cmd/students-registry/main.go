// main is the entry point of the students registry.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger
//  3. Open the storage backend (flat file or SQLite), optionally cached
//  4. Register all HTTP routes
//  5. Start the HTTP server in a separate goroutine
//  6. Block until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, close storage, exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/students-registry --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/students-registry
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aanand-mishra/students-registry/internal/config"
	"github.com/aanand-mishra/students-registry/internal/http/handlers/student"
	"github.com/aanand-mishra/students-registry/internal/http/middleware"
	"github.com/aanand-mishra/students-registry/internal/storage"
	"github.com/aanand-mishra/students-registry/internal/storage/cache"
	"github.com/aanand-mishra/students-registry/internal/storage/flatfile"
	"github.com/aanand-mishra/students-registry/internal/storage/sqlite"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting students-registry",
		slog.String("env", cfg.Env),
		slog.String("backend", cfg.Storage.Backend),
	)

	store, err := openStorage(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	log.Info("storage initialised",
		slog.String("path", cfg.StoragePath))

	router := http.NewServeMux()
	student.Register(router, store)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      middleware.RequestLogger(log, middleware.CORS(cfg.HTTPServer.CORSOrigins, router)),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		// ListenAndServe returns http.ErrServerClosed after Shutdown;
		// that is expected and not an error.
		if err := server.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
	}

	log.Info("server stopped gracefully")
}

// openStorage builds the configured backend and, when Redis is enabled,
// wraps it with the read-through cache. Closing the returned store also
// closes the Redis client.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	var store storage.Storage

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := sqlite.New(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		store = db
	default:
		ff, err := flatfile.Open(cfg.StoragePath, flatfile.WithLogger(log))
		if err != nil {
			return nil, err
		}
		if cfg.Storage.CompactOnStart {
			if err := ff.Compact(ctx); err != nil {
				ff.Close()
				return nil, fmt.Errorf("compact on start: %w", err)
			}
		}
		log.Info("flat file loaded",
			slog.String("path", ff.Path()),
			slog.Int("records", ff.Len()))
		store = ff
	}

	if !cfg.Redis.Enabled {
		return store, nil
	}

	client, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		store.Close()
		return nil, err
	}
	log.Info("redis cache enabled",
		slog.String("address", cfg.Redis.Addr),
		slog.Duration("ttl", cfg.Redis.TTL))
	return cache.New(store, cache.NewRedis(client), cfg.Redis.TTL, log), nil
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default: // "dev" and anything unrecognised
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
