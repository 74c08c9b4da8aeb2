package repository

import (
	"RecruitTalkAPI/internal/adapter"
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/model"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Presence lives in a hash per user plus a sorted set of online users scored
// by their last heartbeat, which the sweep job scans.
const onlineIndexKey = "presence:online"

type PresenceRepository struct {
	redisAdapter *adapter.RedisAdapter
}

func NewPresenceRepository(redisAdapter *adapter.RedisAdapter) *PresenceRepository {
	return &PresenceRepository{
		redisAdapter: redisAdapter,
	}
}

func presenceKey(userID uuid.UUID) string {
	return "presence:" + userID.String()
}

func (r *PresenceRepository) SetStatus(ctx context.Context, userID uuid.UUID, status string, at time.Time) error {
	client := r.redisAdapter.Client()
	ts := strconv.FormatInt(at.UnixMilli(), 10)

	pipe := client.TxPipeline()
	pipe.HSet(ctx, presenceKey(userID), "status", status, "updated_at", ts)

	switch status {
	case constant.PresenceOnline:
		pipe.ZAdd(ctx, onlineIndexKey, redis.Z{Score: float64(at.UnixMilli()), Member: userID.String()})
	case constant.PresenceOffline:
		pipe.HSet(ctx, presenceKey(userID), "last_seen", ts)
		pipe.ZRem(ctx, onlineIndexKey, userID.String())
	default:
		pipe.ZRem(ctx, onlineIndexKey, userID.String())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

func (r *PresenceRepository) Get(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.PresenceRecord, error) {
	out := make(map[uuid.UUID]model.PresenceRecord, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	pipe := r.redisAdapter.Client().Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.HGetAll(ctx, presenceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get presence: %w", err)
	}

	for i, id := range userIDs {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		out[id] = DecodePresence(id, fields)
	}
	return out, nil
}

// SweepStale flips users whose last heartbeat is older than cutoff to
// offline and returns them.
func (r *PresenceRepository) SweepStale(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	members, err := r.redisAdapter.Client().ZRangeByScore(ctx, onlineIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan online index: %w", err)
	}

	swept := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			r.redisAdapter.Client().ZRem(ctx, onlineIndexKey, member)
			continue
		}
		if err := r.SetStatus(ctx, id, constant.PresenceOffline, cutoff); err != nil {
			return swept, err
		}
		swept = append(swept, id)
	}
	return swept, nil
}

// DecodePresence converts a presence hash into a record. Unparseable
// timestamps are left unset.
func DecodePresence(userID uuid.UUID, fields map[string]string) model.PresenceRecord {
	record := model.PresenceRecord{
		UserID: userID,
		Status: fields["status"],
	}
	record.LastSeen = parseMillis(fields["last_seen"])
	record.UpdatedAt = parseMillis(fields["updated_at"])
	return record
}

func parseMillis(v string) *time.Time {
	if v == "" {
		return nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
