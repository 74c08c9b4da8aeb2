package job

import (
	"RecruitTalkAPI/internal/config"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type PresenceSweeper interface {
	SweepStale(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// RunPresenceSweep marks users offline whose online record was not refreshed
// within PRESENCE_STALE_MINUTES, e.g. after an API node crashed.
func RunPresenceSweep(ctx context.Context, presence PresenceSweeper, cfg *config.AppConfig, now time.Time) ([]uuid.UUID, error) {
	staleMinutes := cfg.PresenceStaleMinutes
	if staleMinutes <= 0 {
		staleMinutes = 15
	}
	cutoff := now.UTC().Add(-time.Duration(staleMinutes) * time.Minute)

	swept, err := presence.SweepStale(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to sweep stale presence", "error", err)
		return nil, err
	}

	if len(swept) > 0 {
		slog.Info("Marked stale users offline", "count", len(swept))
	}
	return swept, nil
}
