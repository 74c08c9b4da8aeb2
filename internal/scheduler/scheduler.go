package scheduler

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/scheduler/job"
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cfg      *config.AppConfig
	cron     *cron.Cron
	uploads  job.UploadStore
	storage  job.ObjectRemover
	presence job.PresenceSweeper
}

func New(cfg *config.AppConfig, uploads job.UploadStore, storage job.ObjectRemover, presence job.PresenceSweeper) *Scheduler {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	return &Scheduler{
		cfg:      cfg,
		cron:     c,
		uploads:  uploads,
		storage:  storage,
		presence: presence,
	}
}

func (s *Scheduler) Start() {
	slog.Info("Starting Scheduler...")

	s.registerJobs()

	s.cron.Start()
	slog.Info("Scheduler started successfully")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) registerJobs() {
	_, err := s.cron.AddFunc(s.cfg.UploadCleanupCron, func() {
		slog.Info("Starting Upload Cleanup Job")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if deleted, err := job.RunUploadCleanup(ctx, s.uploads, s.storage, s.cfg, time.Now()); err != nil {
			slog.Error("Upload Cleanup Job failed", "error", err)
		} else {
			slog.Info("Upload Cleanup Job completed", "deleted", deleted)
		}
	})
	if err != nil {
		slog.Error("Failed to register Upload Cleanup job", "error", err)
	} else {
		slog.Info("Registered Upload Cleanup Job", "schedule", s.cfg.UploadCleanupCron)
	}

	_, err = s.cron.AddFunc(s.cfg.PresenceSweepCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := job.RunPresenceSweep(ctx, s.presence, s.cfg, time.Now()); err != nil {
			slog.Error("Presence Sweep Job failed", "error", err)
		}
	})
	if err != nil {
		slog.Error("Failed to register Presence Sweep job", "error", err)
	} else {
		slog.Info("Registered Presence Sweep Job", "schedule", s.cfg.PresenceSweepCron)
	}
}
