package repository

import (
	"RecruitTalkAPI/internal/adapter"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	Conversation *ConversationRepository
	Message      *MessageRepository
	Upload       *UploadRepository
	Presence     *PresenceRepository
	Outbox       *OutboxRepository
	RateLimit    *RateLimitRepository
}

func NewRepository(pool *pgxpool.Pool, redisAdapter *adapter.RedisAdapter) *Repository {
	return &Repository{
		Conversation: NewConversationRepository(pool),
		Message:      NewMessageRepository(pool),
		Upload:       NewUploadRepository(pool),
		Presence:     NewPresenceRepository(redisAdapter),
		Outbox:       NewOutboxRepository(redisAdapter),
		RateLimit:    NewRateLimitRepository(redisAdapter),
	}
}
