package model

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID             uuid.UUID    `json:"id"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	SenderID       uuid.UUID    `json:"sender_id"`
	Content        string       `json:"content"`
	Type           string       `json:"type"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`

	// Local delivery state (sending, sent, failed). Not persisted.
	Status string `json:"status,omitempty"`
}

func (m Message) Clone() Message {
	out := m
	if m.Attachments != nil {
		out.Attachments = make([]Attachment, len(m.Attachments))
		copy(out.Attachments, m.Attachments)
	}
	return out
}

type SendMessagePayload struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	MessageType string       `json:"message_type"`
}

type SendMessageRequest struct {
	Content     string       `json:"content" validate:"required_without=Attachments,max=4000"`
	Attachments []Attachment `json:"attachments" validate:"omitempty,max=10,dive"`
}

type GetMessagesRequest struct {
	ConversationID uuid.UUID  `json:"conversation_id" validate:"required"`
	Before         *time.Time `json:"before" validate:"omitempty"`
	Limit          int        `json:"limit" validate:"omitempty,gt=0,max=100"`
}

type MarkReadRequest struct {
	At *time.Time `json:"at" validate:"omitempty"`
}

type TypingRequest struct {
	Typing bool `json:"typing"`
}

type TimelineMessage struct {
	Message
	Receipt string `json:"receipt,omitempty"`
}

type MessageGroup struct {
	SenderID uuid.UUID         `json:"sender_id"`
	IsMine   bool              `json:"is_mine"`
	Messages []TimelineMessage `json:"messages"`
}

type TimelineDay struct {
	Date   string         `json:"date"`
	Label  string         `json:"label"`
	Groups []MessageGroup `json:"groups"`
}

type TimelineResponse struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	Days           []TimelineDay `json:"days"`
	TypingUserIDs  []uuid.UUID   `json:"typing_user_ids"`
	Presence       PresenceLabel `json:"presence"`
	HasMore        bool          `json:"has_more"`
}
