package websocket

import (
	"RecruitTalkAPI/internal/compose"
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/store"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 << 20
	sendBufferSize = 256
	frameTimeout   = 30 * time.Second
)

var ErrUnknownFrame = errors.New("unknown frame type")

type AwayTracker interface {
	MarkOnline(ctx context.Context, userID uuid.UUID) error
	MarkAway(ctx context.Context, userID uuid.UUID) error
}

type ClientDeps struct {
	Uploader compose.Uploader
	Limiter  *config.RateLimiter
	Presence AwayTracker
}

// Client is one websocket connection. It owns a composer per conversation the
// user opened and forwards every change of the shared session store.
type Client struct {
	Hub    *Hub
	Conn   *ws.Conn
	Send   chan []byte
	UserID uuid.UUID

	user    model.UserDTO
	store   *store.Store
	release func()
	deps    ClientDeps
	connID  uuid.UUID

	sendMu     sync.Mutex
	sendClosed bool

	mu        sync.Mutex
	caps      Capabilities
	composers map[uuid.UUID]*compose.Composer
	recording uuid.UUID
}

func NewClient(hub *Hub, conn *ws.Conn, st *store.Store, release func(), deps ClientDeps) *Client {
	user := st.User()
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
		UserID:    user.ID,
		user:      user,
		store:     st,
		release:   release,
		deps:      deps,
		connID:    uuid.New(),
		composers: make(map[uuid.UUID]*compose.Composer),
	}
}

// enqueue reports false when the send buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.Send)
	}
}

func (c *Client) sendEvent(event Event) {
	if event.Meta == nil {
		event.Meta = &EventMeta{Timestamp: time.Now().UnixMilli()}
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}
	if !c.enqueue(data) {
		slog.Warn("Dropping slow websocket client", "userID", c.UserID)
		go c.Hub.unregister(c)
	}
}

func (c *Client) sendError(code, message, frameType string) {
	c.sendEvent(Event{
		Type:    EventError,
		Payload: ErrorPayload{Code: code, Message: message, Frame: frameType},
	})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(ws.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(ws.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) ReadPump() {
	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe := c.store.OnChange(c.forwardChange)

	defer func() {
		cancel()
		unsubscribe()
		c.closeComposers()
		if c.release != nil {
			c.release()
		}
		if c.deps.Limiter != nil {
			c.deps.Limiter.Forget(c.limiterKey())
		}
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.sendEvent(Event{
		Type: EventConnected,
		Payload: map[string]interface{}{
			"user_id": c.UserID,
			"pending": c.store.PendingCount(),
		},
	})

	for {
		messageType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseAbnormalClosure) {
				slog.Warn("Websocket closed unexpectedly", "error", err, "userID", c.UserID)
			}
			return
		}

		if !c.allowFrame() {
			c.sendError("rate_limited", "Too many requests, slow down", "")
			continue
		}

		if messageType == ws.BinaryMessage {
			if err := c.pushAudio(data); err != nil {
				code, message := describeError(err)
				c.sendError(code, message, FrameRecordChunk)
			}
			continue
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			c.sendError("bad_frame", err.Error(), "")
			continue
		}

		frameCtx, frameCancel := context.WithTimeout(ctx, frameTimeout)
		err = c.handleFrame(frameCtx, frame)
		frameCancel()
		if err != nil {
			code, message := describeError(err)
			c.sendError(code, message, frame.Type)
		}
	}
}

func (c *Client) limiterKey() string {
	return c.UserID.String() + ":" + c.connID.String()
}

func (c *Client) allowFrame() bool {
	if c.deps.Limiter == nil {
		return true
	}
	allowed, _ := c.deps.Limiter.Allow(c.limiterKey())
	return allowed
}

// DecodeFrame parses a text frame and checks the fields its type needs.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, errors.New("frame is not valid JSON")
	}

	switch frame.Type {
	case "":
		return Frame{}, errors.New("frame type is required")
	case FrameHello, FrameOutboxRetry, FramePresenceAway, FramePresenceActive:
		return frame, nil
	case FrameConversationOpen, FrameConversationRead, FrameComposeInput, FrameComposeBlur,
		FrameComposeSend, FrameRecordStart, FrameRecordChunk, FrameRecordStop,
		FrameDictationStart, FrameTranscript, FrameDictationStop:
	case FrameComposeAttach:
		if len(frame.Files) == 0 {
			return Frame{}, errors.New("files are required")
		}
	case FrameAttachmentRemove:
		if frame.AttachmentID == uuid.Nil {
			return Frame{}, errors.New("attachment_id is required")
		}
	default:
		return Frame{}, fmt.Errorf("%w: %s", ErrUnknownFrame, frame.Type)
	}

	if frame.ConversationID == uuid.Nil {
		return Frame{}, errors.New("conversation_id is required")
	}
	return frame, nil
}

func (c *Client) handleFrame(ctx context.Context, frame Frame) error {
	switch frame.Type {
	case FrameHello:
		c.mu.Lock()
		c.caps = frame.Capabilities
		composers := make([]*compose.Composer, 0, len(c.composers))
		for _, composer := range c.composers {
			composers = append(composers, composer)
		}
		c.mu.Unlock()

		for _, composer := range composers {
			recorder, recognizer := capabilityAdapters(frame.Capabilities)
			if err := composer.SetCapabilities(recorder, recognizer); err != nil {
				slog.Debug("Kept capabilities of busy composer", "error", err, "conversationID", composer.ConversationID())
			}
		}
		return nil

	case FramePresenceAway, FramePresenceActive:
		if c.deps.Presence == nil {
			return nil
		}
		if frame.Type == FramePresenceAway {
			return c.deps.Presence.MarkAway(ctx, c.UserID)
		}
		return c.deps.Presence.MarkOnline(ctx, c.UserID)

	case FrameOutboxRetry:
		result, err := c.store.RetryPending(ctx)
		if err != nil {
			return err
		}
		c.sendEvent(Event{
			Type: EventOutboxChanged,
			Payload: map[string]interface{}{
				"pending":   c.store.PendingCount(),
				"succeeded": result.Succeeded,
				"failed":    result.Failed,
			},
		})
		return nil

	case FrameConversationOpen:
		messages, err := c.store.OpenConversation(ctx, frame.ConversationID)
		if err != nil {
			return err
		}
		conv, _ := c.store.Conversation(frame.ConversationID)
		composer, err := c.composer(frame.ConversationID)
		if err != nil {
			return err
		}
		c.sendEvent(Event{
			Type: EventConversationOpened,
			Payload: map[string]interface{}{
				"conversation": conv,
				"messages":     messages,
				"has_more":     c.store.HasMore(frame.ConversationID),
				"compose":      composer.State(),
			},
			Meta: &EventMeta{
				Timestamp:      time.Now().UnixMilli(),
				ConversationID: frame.ConversationID,
				UnreadCount:    conv.UnreadCount,
			},
		})
		return nil

	case FrameConversationRead:
		at := time.Now()
		if frame.At != nil {
			at = *frame.At
		}
		return c.store.MarkRead(ctx, frame.ConversationID, at)
	}

	composer, err := c.composer(frame.ConversationID)
	if err != nil {
		return err
	}

	switch frame.Type {
	case FrameComposeInput:
		composer.SetText(frame.Text)
	case FrameComposeBlur:
		composer.Blur()
	case FrameComposeSend:
		_, err := composer.Send(ctx)
		if errors.Is(err, store.ErrMessagePending) {
			return nil
		}
		return err
	case FrameComposeAttach:
		files := make([]model.UploadFile, 0, len(frame.Files))
		for _, f := range frame.Files {
			files = append(files, model.UploadFile{
				Name:     f.Name,
				Size:     int64(len(f.Data)),
				MimeType: f.MimeType,
				Reader:   bytes.NewReader(f.Data),
			})
		}
		composer.AddFiles(ctx, files)
	case FrameAttachmentRemove:
		return composer.RemoveAttachment(frame.AttachmentID)
	case FrameRecordStart:
		if err := composer.StartRecording(ctx, frame.MimeType); err != nil {
			return err
		}
		c.mu.Lock()
		c.recording = frame.ConversationID
		c.mu.Unlock()
	case FrameRecordChunk:
		return composer.PushAudio(frame.Data)
	case FrameRecordStop:
		c.mu.Lock()
		if c.recording == frame.ConversationID {
			c.recording = uuid.Nil
		}
		c.mu.Unlock()
		_, err := composer.StopRecording(ctx)
		return err
	case FrameDictationStart:
		return composer.StartDictation(ctx)
	case FrameTranscript:
		return composer.FeedTranscript(frame.Text, frame.Final)
	case FrameDictationStop:
		composer.StopDictation()
	}
	return nil
}

// pushAudio routes a binary frame to the composer that is recording.
func (c *Client) pushAudio(chunk []byte) error {
	c.mu.Lock()
	composer, ok := c.composers[c.recording]
	c.mu.Unlock()
	if !ok {
		return compose.ErrNotRecording
	}
	return composer.PushAudio(chunk)
}

// composer returns the composer of a conversation the session holds,
// creating it on first use.
func (c *Client) composer(conversationID uuid.UUID) (*compose.Composer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if composer, ok := c.composers[conversationID]; ok {
		return composer, nil
	}
	if _, ok := c.store.Conversation(conversationID); !ok {
		return nil, store.ErrConversationNotFound
	}

	opts := []compose.Option{}
	recorder, recognizer := capabilityAdapters(c.caps)
	if recorder != nil {
		opts = append(opts, compose.WithRecorder(recorder))
	}
	if recognizer != nil {
		opts = append(opts, compose.WithDictation(recognizer))
	}

	composer := compose.NewComposer(c.user, conversationID, c.deps.Uploader, c.store, composerEvents{client: c}, opts...)
	c.composers[conversationID] = composer
	return composer, nil
}

// capabilityAdapters returns nil for each capability the browser lacks.
func capabilityAdapters(caps Capabilities) (compose.AudioRecorder, compose.SpeechRecognizer) {
	var recorder compose.AudioRecorder
	var recognizer compose.SpeechRecognizer
	if caps.AudioRecording {
		recorder = compose.NewChunkRecorder()
	}
	if caps.SpeechRecognition {
		recognizer = compose.NewStreamDictation()
	}
	return recorder, recognizer
}

func (c *Client) closeComposers() {
	c.mu.Lock()
	composers := make([]*compose.Composer, 0, len(c.composers))
	for _, composer := range c.composers {
		composers = append(composers, composer)
	}
	c.composers = make(map[uuid.UUID]*compose.Composer)
	c.mu.Unlock()

	for _, composer := range composers {
		composer.Close()
	}
}

type composerEvents struct {
	client *Client
}

func (e composerEvents) Notice(n model.Notice) {
	e.client.sendEvent(Event{Type: EventNotice, Payload: n})
}

func (e composerEvents) StateChanged(s compose.State) {
	e.client.sendEvent(Event{
		Type:    EventComposeState,
		Payload: s,
		Meta: &EventMeta{
			Timestamp:      time.Now().UnixMilli(),
			ConversationID: s.ConversationID,
		},
	})
}

func (c *Client) forwardChange(change store.Change) {
	if event, ok := EventFromChange(change); ok {
		c.sendEvent(event)
	}
}

// EventFromChange converts a store mutation into the event pushed to the
// client.
func EventFromChange(change store.Change) (Event, bool) {
	meta := &EventMeta{
		Timestamp:      time.Now().UnixMilli(),
		ConversationID: change.ConversationID,
	}

	switch change.Kind {
	case store.ChangeMessageNew, store.ChangeMessageUpdated, store.ChangeMessageRemoved:
		if change.Message == nil {
			return Event{}, false
		}
		meta.SenderID = change.Message.SenderID
		eventType := EventMessageNew
		switch change.Kind {
		case store.ChangeMessageUpdated:
			eventType = EventMessageUpdated
		case store.ChangeMessageRemoved:
			eventType = EventMessageRemoved
		}
		return Event{Type: eventType, Payload: change.Message, Meta: meta}, true

	case store.ChangeConversationUpdated:
		if change.Conversation == nil {
			return Event{}, false
		}
		meta.UnreadCount = change.Conversation.UnreadCount
		return Event{Type: EventConversationUpdated, Payload: change.Conversation, Meta: meta}, true

	case store.ChangeRead:
		if change.ReadCursor == nil {
			return Event{}, false
		}
		meta.SenderID = change.ReadCursor.UserID
		return Event{Type: EventChatRead, Payload: change.ReadCursor, Meta: meta}, true

	case store.ChangeTyping:
		if change.Typing == nil {
			return Event{}, false
		}
		meta.SenderID = change.Typing.UserID
		return Event{Type: EventTyping, Payload: change.Typing, Meta: meta}, true

	case store.ChangeOutbox:
		return Event{
			Type:    EventOutboxChanged,
			Payload: map[string]interface{}{"pending": change.PendingCount},
			Meta:    meta,
		}, true
	}
	return Event{}, false
}

func describeError(err error) (string, string) {
	var appErr *helper.AppError
	switch {
	case errors.As(err, &appErr):
		return "request_failed", appErr.Message
	case errors.Is(err, compose.ErrNothingToSend), errors.Is(err, store.ErrEmptyPayload):
		return "nothing_to_send", "Type a message or attach a file"
	case errors.Is(err, compose.ErrComposerBusy):
		return "composer_busy", "Wait for uploads to finish"
	case errors.Is(err, compose.ErrAttachmentLimit), errors.Is(err, store.ErrTooManyAttachments):
		return "attachment_limit", "Too many attachments"
	case errors.Is(err, compose.ErrAttachmentNotFound):
		return "attachment_not_found", "Attachment not found"
	case errors.Is(err, compose.ErrCapabilityUnsupported):
		return "not_supported", "This device does not support that feature"
	case errors.Is(err, compose.ErrAlreadyRecording), errors.Is(err, compose.ErrDictationActive):
		return "already_active", err.Error()
	case errors.Is(err, compose.ErrNotRecording), errors.Is(err, compose.ErrNotDictating):
		return "not_active", err.Error()
	case errors.Is(err, compose.ErrRecordingTooLarge):
		return "too_large", "Recording is larger than 20 MB"
	case errors.Is(err, store.ErrMessageTooLong):
		return "too_long", "Message is too long"
	case errors.Is(err, store.ErrConversationNotFound):
		return "not_found", "Conversation not found"
	case errors.Is(err, store.ErrRejected):
		return "rejected", "You cannot do that in this conversation"
	case errors.Is(err, compose.ErrComposerClosed), errors.Is(err, store.ErrClosed):
		return "closed", "Session closed"
	}
	slog.Error("Websocket frame failed", "error", err)
	return "internal", "Something went wrong"
}
