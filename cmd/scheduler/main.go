package main

import (
	"RecruitTalkAPI/internal/adapter"
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/repository"
	"RecruitTalkAPI/internal/scheduler"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.LoadAppConfig()

	cfg.DBMigrate = false

	pool, err := config.NewPostgresPool(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisAdapter, err := adapter.NewRedisAdapter(cfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisAdapter.Close()

	s3Client := config.NewS3Client(cfg)
	if s3Client == nil {
		slog.Error("Failed to initialize S3 client")
		os.Exit(1)
	}

	repo := repository.NewRepository(pool, redisAdapter)
	storageAdapter := adapter.NewStorageAdapter(cfg, s3Client)

	srv := scheduler.New(cfg, repo.Upload, storageAdapter, repo.Presence)

	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down scheduler...")
	srv.Stop()
}
