package model

import "time"

type PendingMessage struct {
	Message   Message   `json:"message"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	QueuedAt  time.Time `json:"queued_at"`
}

type RetryResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type OutboxResponse struct {
	Pending  int       `json:"pending"`
	Messages []Message `json:"messages"`
}

type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
