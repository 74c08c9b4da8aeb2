package model

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Title    string    `json:"title,omitempty"`
	Name     string    `json:"name,omitempty"`
	IsGroup  bool      `json:"is_group"`

	AvatarURL string `json:"avatar_url,omitempty"`

	// Free-form attributes written by the feature that created the thread,
	// e.g. {"student_profile_id": "..."} for a university-side conversation.
	Metadata map[string]any `json:"metadata,omitempty"`

	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Unread messages for the viewer the conversation was loaded for.
	UnreadCount int `json:"unread_count"`

	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"last_message,omitempty"`
}

type Participant struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserID         uuid.UUID  `json:"user_id"`
	Email          string     `json:"email,omitempty"`
	DisplayName    string     `json:"display_name,omitempty"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Role           string     `json:"role,omitempty"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// Clone returns a deep copy so callers can read it without holding the owner's lock.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Participants != nil {
		out.Participants = make([]Participant, len(c.Participants))
		copy(out.Participants, c.Participants)
	}
	if c.LastMessage != nil {
		m := c.LastMessage.Clone()
		out.LastMessage = &m
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

type CreateConversationRequest struct {
	CounterpartID uuid.UUID      `json:"counterpart_id" validate:"required"`
	Context       string         `json:"context" validate:"omitempty,max=120"`
	Metadata      map[string]any `json:"metadata" validate:"omitempty"`
}

type ChatListEntryResponse struct {
	Identity        string      `json:"identity"`
	ConversationID  uuid.UUID   `json:"conversation_id"`
	ConversationIDs []uuid.UUID `json:"conversation_ids"`
	IsGroup         bool        `json:"is_group"`
	DisplayName     string      `json:"display_name"`
	AvatarURL       string      `json:"avatar_url,omitempty"`
	UnreadCount     int         `json:"unread_count"`

	LastMessage    *Message   `json:"last_message,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	Presence PresenceLabel `json:"presence"`
}

type GetChatListRequest struct {
	Query string `json:"query" validate:"omitempty,max=100"`
}
