package model

import (
	"time"

	"github.com/google/uuid"
)

type PresenceRecord struct {
	UserID    uuid.UUID  `json:"user_id"`
	Status    string     `json:"status"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type PresenceLabel struct {
	Text   string `json:"text"`
	Color  string `json:"color"`
	Online bool   `json:"online"`
}
