package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/bookings/internal/clock"
	"github.com/JonMunkholm/bookings/internal/config"
	"github.com/JonMunkholm/bookings/internal/core"
	_ "github.com/JonMunkholm/bookings/internal/core/sources" // Register import sources
	"github.com/JonMunkholm/bookings/internal/logging"
	"github.com/JonMunkholm/bookings/internal/storage"
	"github.com/JonMunkholm/bookings/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()
	slog.Info("store ready", "driver", cfg.Database.Driver)

	service := core.NewService(store, clock.NewSystem(), core.ServiceConfig{
		ImportDir:            cfg.Import.Dir,
		ImportTimeout:        cfg.Import.Timeout,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWait:           cfg.Import.MaxWaitTime,
		MaxBookingsPerMember: cfg.Booking.MaxPerMember,
	})

	sources := core.Sources()
	for _, def := range sources {
		slog.Debug("import source", "key", def.Key, "file", def.FileName, "form_field", def.FormField)
	}
	slog.Info("import sources registered", "count", len(sources), "dir", cfg.Import.Dir)

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := shutdown(shutdownCtx, server, service.Limiter()); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		return
	}
	<-stopped
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops the listener first so no new import can start, then waits
// for imports still holding a slot to commit or roll back.
func shutdown(ctx context.Context, server shutdowner, limiter *core.ImportLimiter) error {
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	if active := limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for imports to complete", "active", active)
		if err := limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
			return err
		}
		slog.Info("all imports completed")
	}
	return nil
}
