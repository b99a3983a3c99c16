// Command customfields-server renders definitions as HTML surfaces, accepts
// their form posts and stores the values in SQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/goliatone/go-customfields/internal/server"
	"github.com/goliatone/go-customfields/internal/storage"
	"github.com/goliatone/go-customfields/pkg/options"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "customfields-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := server.LoadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	level := &slog.LevelVar{}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	defs, err := server.LoadDefinitions(cfg.DefinitionsDir, logger)
	if err != nil {
		return err
	}
	if cfg.Watch {
		if err := defs.Watch(ctx); err != nil {
			return fmt.Errorf("watch definitions: %w", err)
		}
	}

	store, err := storage.Open(ctx, cfg.Storage, storage.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	sources := options.NewSources()
	timezones, err := options.TimezoneSource(options.WithTopOnEmpty())
	if err != nil {
		return err
	}
	if err := sources.Register("timezones", timezones); err != nil {
		return err
	}

	srv, err := server.New(defs, store,
		server.WithSources(sources),
		server.WithLogger(logger),
		server.WithCORSOrigins(cfg.CORSOrigins...),
		server.WithOptionsRateLimit(cfg.OptionsRate, cfg.OptionsBurst),
		server.WithAccessLog(os.Stdout),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", cfg.Addr, "definitions", cfg.DefinitionsDir, "engine", cfg.Storage.Engine)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}
