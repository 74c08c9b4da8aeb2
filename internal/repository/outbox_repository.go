package repository

import (
	"RecruitTalkAPI/internal/adapter"
	"RecruitTalkAPI/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Pending entries older than this are dropped on the next write.
const outboxTTL = 7 * 24 * time.Hour

// OutboxRepository keeps each user's pending messages in one Redis hash
// keyed by message id.
type OutboxRepository struct {
	redisAdapter *adapter.RedisAdapter
}

func NewOutboxRepository(redisAdapter *adapter.RedisAdapter) *OutboxRepository {
	return &OutboxRepository{
		redisAdapter: redisAdapter,
	}
}

func outboxKey(userID uuid.UUID) string {
	return "outbox:" + userID.String()
}

func (r *OutboxRepository) SavePending(ctx context.Context, userID uuid.UUID, pending model.PendingMessage) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode pending message: %w", err)
	}

	pipe := r.redisAdapter.Client().TxPipeline()
	pipe.HSet(ctx, outboxKey(userID), pending.Message.ID.String(), raw)
	pipe.Expire(ctx, outboxKey(userID), outboxTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save pending message: %w", err)
	}
	return nil
}

func (r *OutboxRepository) RemovePending(ctx context.Context, userID uuid.UUID, messageID uuid.UUID) error {
	return r.redisAdapter.Client().HDel(ctx, outboxKey(userID), messageID.String()).Err()
}

func (r *OutboxRepository) ListPending(ctx context.Context, userID uuid.UUID) ([]model.PendingMessage, error) {
	entries, err := r.redisAdapter.Client().HGetAll(ctx, outboxKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending messages: %w", err)
	}

	out := make([]model.PendingMessage, 0, len(entries))
	for field, raw := range entries {
		var p model.PendingMessage
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			slog.Warn("Dropping unreadable pending message", "userID", userID, "messageID", field, "error", err)
			r.redisAdapter.Client().HDel(ctx, outboxKey(userID), field)
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuedAt.Before(out[j].QueuedAt)
	})
	return out, nil
}
