package constant

import "time"

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

const (
	MessageStatusSending = "sending"
	MessageStatusSent    = "sent"
	MessageStatusFailed  = "failed"
)

const (
	ReceiptDelivered  = "delivered"
	ReceiptRead       = "read"
	ReceiptReadBySome = "read_by_some"
)

const (
	MaxAttachmentsPerMessage = 10
	MaxAttachmentSize        = 20 << 20
	MaxMessageLength         = 4000

	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 100

	// Consecutive messages from one sender closer than this render as one group.
	MessageGroupWindow = 5 * time.Minute
)
