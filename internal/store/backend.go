package store

import (
	"RecruitTalkAPI/internal/model"
	"context"
	"time"

	"github.com/google/uuid"
)

// Backend is the hosted data layer a Store reads from and writes to. Every
// call is scoped to the user the store was created for.
type Backend interface {
	ListConversations(ctx context.Context, user model.UserDTO) ([]model.Conversation, error)
	ListMessages(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, before *time.Time, limit int) ([]model.Message, error)

	// InsertMessage must be idempotent on the message id.
	InsertMessage(ctx context.Context, user model.UserDTO, msg model.Message) (*model.Message, error)

	MarkRead(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, at time.Time) error
	SendTyping(ctx context.Context, user model.UserDTO, signal model.TypingSignal) error
	GetOrCreateConversation(ctx context.Context, user model.UserDTO, req model.CreateConversationRequest) (*model.Conversation, error)
	Subscribe(ctx context.Context, user model.UserDTO, conversationIDs []uuid.UUID) (Subscription, error)
}

// Subscription delivers realtime events for a set of conversations plus the
// user's own channel. Events is closed after Close.
type Subscription interface {
	Events() <-chan model.RealtimeEvent
	Add(ctx context.Context, conversationIDs ...uuid.UUID) error
	Close() error
}

// OutboxStore persists pending messages across sessions.
type OutboxStore interface {
	SavePending(ctx context.Context, userID uuid.UUID, pending model.PendingMessage) error
	RemovePending(ctx context.Context, userID uuid.UUID, messageID uuid.UUID) error
	ListPending(ctx context.Context, userID uuid.UUID) ([]model.PendingMessage, error)
}
