package main

import (
	"RecruitTalkAPI/internal/adapter"
	"RecruitTalkAPI/internal/bootstrap"
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/repository/migrations"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.LoadAppConfig()

	pool, err := config.NewPostgresPool(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := config.RunMigrations(cfg, migrations.FS); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	redisAdapter, err := adapter.NewRedisAdapter(cfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisAdapter.Close(); err != nil {
			slog.Error("Error closing Redis connection", "error", err)
		}
	}()

	s3Client := config.NewS3Client(cfg)
	if s3Client == nil {
		slog.Error("Failed to initialize S3 client")
		os.Exit(1)
	}

	jwtSecret, err := bootstrap.ResolveJWTSecret(cfg)
	if err != nil {
		slog.Error("Failed to resolve JWT secret", "error", err)
		os.Exit(1)
	}

	validate := config.NewValidator()
	chiMux := config.NewChi(cfg)

	app := bootstrap.Init(cfg, pool, redisAdapter, validate, s3Client, jwtSecret, chiMux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           chiMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting RecruitTalkAPI", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	app.Shutdown()
}
