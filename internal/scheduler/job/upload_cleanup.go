package job

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/repository"
	"context"
	"log/slog"
	"time"
)

const uploadCleanupBatch = 200

type UploadStore interface {
	ListOrphans(ctx context.Context, cutoff time.Time, limit int) ([]repository.Upload, error)
	Delete(ctx context.Context, storagePath string) error
}

type ObjectRemover interface {
	Delete(ctx context.Context, path string, isPublic bool) error
}

// RunUploadCleanup removes uploads that were never attached to a message
// within the retention window. It returns how many were deleted.
func RunUploadCleanup(ctx context.Context, uploads UploadStore, storage ObjectRemover, cfg *config.AppConfig, now time.Time) (int, error) {
	retentionHours := cfg.UploadRetentionHours
	if retentionHours <= 0 {
		retentionHours = 24
	}
	cutoff := now.UTC().Add(-time.Duration(retentionHours) * time.Hour)

	slog.Info("Running Upload Cleanup", "retentionHours", retentionHours, "cutoff", cutoff)

	deleted := 0
	for {
		orphans, err := uploads.ListOrphans(ctx, cutoff, uploadCleanupBatch)
		if err != nil {
			slog.Error("Failed to query orphan uploads", "error", err)
			return deleted, err
		}

		slog.Info("Found orphan upload candidates", "count", len(orphans))

		removed := 0
		for _, u := range orphans {
			if err := storage.Delete(ctx, u.StoragePath, !u.IsPrivate); err != nil {
				slog.Error("Failed to delete S3 file", "key", u.StoragePath, "error", err)
				continue
			}

			if err := uploads.Delete(ctx, u.StoragePath); err != nil {
				slog.Error("Failed to delete upload row", "key", u.StoragePath, "error", err)
				continue
			}
			removed++
		}
		deleted += removed

		// A short or fully failing batch means nothing more can be done now.
		if len(orphans) < uploadCleanupBatch || removed == 0 {
			return deleted, nil
		}
	}
}
