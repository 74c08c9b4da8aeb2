package websocket

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventConnected EventType = "connected"
	EventError     EventType = "error"

	EventMessageNew     EventType = "message.new"
	EventMessageUpdated EventType = "message.updated"
	EventMessageRemoved EventType = "message.removed"

	EventConversationOpened  EventType = "conversation.opened"
	EventConversationUpdated EventType = "conversation.updated"
	EventChatRead            EventType = "chat.read"
	EventTyping              EventType = "chat.typing"

	EventUserOnline  EventType = "user.online"
	EventUserOffline EventType = "user.offline"

	EventOutboxChanged EventType = "outbox.changed"
	EventComposeState  EventType = "compose.state"
	EventNotice        EventType = "notice"
)

type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
	Meta    *EventMeta  `json:"meta,omitempty"`
}

type EventMeta struct {
	Timestamp      int64     `json:"timestamp"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
	SenderID       uuid.UUID `json:"sender_id,omitempty"`
	UnreadCount    int       `json:"unread_count"`
}

// Frames sent by the client.
const (
	FrameHello            = "client.hello"
	FrameConversationOpen = "conversation.open"
	FrameConversationRead = "conversation.read"
	FrameComposeInput     = "compose.input"
	FrameComposeBlur      = "compose.blur"
	FrameComposeSend      = "compose.send"
	FrameComposeAttach    = "compose.attach"
	FrameAttachmentRemove = "compose.attachment.remove"
	FrameRecordStart      = "compose.record.start"
	FrameRecordChunk      = "compose.record.chunk"
	FrameRecordStop       = "compose.record.stop"
	FrameDictationStart   = "compose.dictation.start"
	FrameTranscript       = "compose.transcript"
	FrameDictationStop    = "compose.dictation.stop"
	FrameOutboxRetry      = "outbox.retry"
	FramePresenceAway     = "presence.away"
	FramePresenceActive   = "presence.active"
)

// Capabilities announces what the client device can do. Missing
// capabilities make the matching compose frames report "not supported".
type Capabilities struct {
	AudioRecording    bool `json:"audio_recording"`
	SpeechRecognition bool `json:"speech_recognition"`
}

type FrameFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type Frame struct {
	Type           string       `json:"type"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	Text           string       `json:"text,omitempty"`
	Final          bool         `json:"final,omitempty"`
	MimeType       string       `json:"mime_type,omitempty"`
	AttachmentID   uuid.UUID    `json:"attachment_id"`
	Files          []FrameFile  `json:"files,omitempty"`
	Data           []byte       `json:"data,omitempty"`
	At             *time.Time   `json:"at,omitempty"`
	Capabilities   Capabilities `json:"capabilities"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Frame   string `json:"frame,omitempty"`
}
