package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RealtimeMessageNew      = "message.new"
	RealtimeReadCursor      = "chat.read"
	RealtimeTyping          = "chat.typing"
	RealtimeConversationNew = "conversation.new"
)

type TypingSignal struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Typing         bool      `json:"typing"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type ReadCursor struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	LastReadAt     time.Time `json:"last_read_at"`
}

// RealtimeEvent is the payload carried on the pub/sub channel.
type RealtimeEvent struct {
	Type           string        `json:"type"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	UserID         uuid.UUID     `json:"user_id,omitempty"`
	Message        *Message      `json:"message,omitempty"`
	Typing         *TypingSignal `json:"typing,omitempty"`
	ReadCursor     *ReadCursor   `json:"read_cursor,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	At             time.Time     `json:"at"`
}
