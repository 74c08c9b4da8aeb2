package constant

import "time"

const (
	TypingHeartbeat = 2000 * time.Millisecond
	TypingTimeout   = 3000 * time.Millisecond
	TypingExpiry    = 5 * time.Second
)
