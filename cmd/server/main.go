// Command server runs the security agent HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"sec-agent/internal/app"
	"sec-agent/internal/config"
	"sec-agent/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", "", "path to a YAML config file (default $CONFIG_FILE)")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	database, err := app.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer database.Close() //nolint:errcheck

	application, err := app.New(app.Deps{
		Cfg:     cfg,
		ReadDB:  database.ReadDB,
		Logger:  logger,
		Metrics: metrics.New(),
	})
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           application.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A pipeline run makes up to four model calls plus a query.
		WriteTimeout: 4*cfg.LLM.Timeout + cfg.Store.QueryTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if cfg.RequestTimeout > 0 {
		srv.WriteTimeout = cfg.RequestTimeout + 10*time.Second
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("security agent listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
