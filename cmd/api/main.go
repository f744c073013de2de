// Command api serves the AgendoPro webhook endpoint and the webhook log admin API.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendopro/webhook/internal/config"
	"github.com/agendopro/webhook/pkg/database"
)

const (
	dbConnectTimeout = 10 * time.Second
	applicationName  = "agendopro-webhook"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return 1
	}

	setupLogging(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *pgxpool.Pool

	if cfg.StoreBackend == config.StoreBackendPostgres {
		db, err = database.NewPostgresPool(ctx, cfg.DatabaseURL,
			database.WithMaxConns(int32(cfg.DatabaseMaxConns)), //nolint:gosec // validated non-negative, small
			database.WithConnectTimeout(dbConnectTimeout),
			database.WithApplicationName(applicationName),
		)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)

			return 1
		}
		defer db.Close()
	}

	app, err := NewApp(cfg, db)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)

		return 1
	}

	exitCode := 0

	if err := app.Run(ctx); err != nil {
		slog.Error("Application stopped with error", "error", err)

		exitCode = 1
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)

		exitCode = 1
	}

	slog.Info("Server exited")

	return exitCode
}

// parseLogLevel maps LOG_LEVEL to a slog level. Unknown values fall back to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging installs the default slog logger. format is "text" or "json".
func setupLogging(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
