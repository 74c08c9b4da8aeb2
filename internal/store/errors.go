package store

import "errors"

var (
	ErrEmptyPayload         = errors.New("message has no content and no attachments")
	ErrMessageTooLong       = errors.New("message content is too long")
	ErrTooManyAttachments   = errors.New("too many attachments")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessagePending       = errors.New("message queued for retry")
	ErrPendingNotFound      = errors.New("pending message not found")
	ErrClosed               = errors.New("store closed")

	// ErrRejected marks backend failures that retrying cannot fix, such as
	// writing to a conversation the user is not part of.
	ErrRejected = errors.New("rejected by backend")
)
