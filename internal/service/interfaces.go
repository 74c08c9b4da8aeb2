package service

import (
	"RecruitTalkAPI/internal/adapter"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/repository"
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

type conversationRepository interface {
	ListForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]model.Conversation, error)
	GetForUser(ctx context.Context, userID, conversationID uuid.UUID) (*model.Conversation, error)
	GetOrCreateDirect(ctx context.Context, tenantID, userID, otherID uuid.UUID, entryContext string, metadata map[string]any) (uuid.UUID, bool, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	ContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AdvanceReadCursor(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (time.Time, error)
	ProfileInTenant(ctx context.Context, tenantID, userID uuid.UUID) (bool, error)
}

type messageRepository interface {
	List(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]model.Message, error)
	Insert(ctx context.Context, msg model.Message) (*model.Message, bool, error)
}

type uploadRepository interface {
	Record(ctx context.Context, upload repository.Upload) error
	DeleteUnlinked(ctx context.Context, ownerID uuid.UUID, storagePath string) (bool, error)
}

type uploadLedger interface {
	GetOwned(ctx context.Context, ownerID uuid.UUID, storagePath string) (*repository.Upload, error)
}

type presenceRepository interface {
	SetStatus(ctx context.Context, userID uuid.UUID, status string, at time.Time) error
	Get(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.PresenceRecord, error)
}

type realtimeBus interface {
	PublishToConversation(ctx context.Context, conversationID uuid.UUID, event model.RealtimeEvent) error
	PublishToUser(ctx context.Context, userID uuid.UUID, event model.RealtimeEvent) error
	Subscribe(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) (*adapter.RealtimeSubscription, error)
}

type objectStorage interface {
	helper.URLGenerator
	Put(ctx context.Context, reader io.Reader, size int64, contentType string, path string, isPublic bool) error
	Delete(ctx context.Context, path string, isPublic bool) error
}

// LiveDirectory reports which users hold at least one open websocket.
type LiveDirectory interface {
	OnlineUsers(userIDs []uuid.UUID) map[uuid.UUID]bool
}
