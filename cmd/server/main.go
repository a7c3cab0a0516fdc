package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/Ivan-Kwetey/ArtInsight/internal/config"
	"github.com/Ivan-Kwetey/ArtInsight/internal/handlers"
	"github.com/Ivan-Kwetey/ArtInsight/internal/prediction"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.LogLevel(),
			TimeFormat: "15:04:05",
		}),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Server.UploadDir, 0755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	var predictor handlers.Predictor
	rt, err := prediction.Bootstrap(ctx, cfg, logger, prediction.Loaders{})
	switch {
	case err == nil:
		defer rt.Close()
		predictor = rt.Service
		logger.Info("classes", "labels", rt.Service.Labels())
	case cfg.Server.AllowDegraded:
		logger.Error("startup failed, serving without a model", "err", err)
	default:
		return fmt.Errorf("startup: %w", err)
	}

	h := handlers.NewHandler(predictor, cfg.Server.UploadDir, cfg.MaxUploadBytes(), logger)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handlers.NewRouter(h, healthCheckers(rt), logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "upload_dir", cfg.Server.UploadDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
