package websocket

import (
	"RecruitTalkAPI/internal/compose"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/store"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	convID := uuid.New()

	t.Run("compose input", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(fmt.Sprintf(`{"type":"compose.input","conversation_id":%q,"text":"hi"}`, convID)))
		require.NoError(t, err)
		assert.Equal(t, FrameComposeInput, frame.Type)
		assert.Equal(t, convID, frame.ConversationID)
		assert.Equal(t, "hi", frame.Text)
	})

	t.Run("hello carries capabilities", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(`{"type":"client.hello","capabilities":{"audio_recording":true}}`))
		require.NoError(t, err)
		assert.True(t, frame.Capabilities.AudioRecording)
		assert.False(t, frame.Capabilities.SpeechRecognition)
	})

	t.Run("attach decodes base64 data", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(fmt.Sprintf(`{"type":"compose.attach","conversation_id":%q,"files":[{"name":"cv.pdf","mime_type":"application/pdf","data":"aGVsbG8="}]}`, convID)))
		require.NoError(t, err)
		require.Len(t, frame.Files, 1)
		assert.Equal(t, []byte("hello"), frame.Files[0].Data)
	})

	cases := map[string]string{
		"invalid json":         `{`,
		"missing type":         `{}`,
		"missing conversation": `{"type":"compose.send"}`,
		"attach without files": fmt.Sprintf(`{"type":"compose.attach","conversation_id":%q}`, convID),
		"remove without id":    fmt.Sprintf(`{"type":"compose.attachment.remove","conversation_id":%q}`, convID),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(raw))
			assert.Error(t, err)
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		_, err := DecodeFrame([]byte(`{"type":"compose.dance"}`))
		assert.ErrorIs(t, err, ErrUnknownFrame)
	})
}

func TestEventFromChange(t *testing.T) {
	convID := uuid.New()
	senderID := uuid.New()

	ev, ok := EventFromChange(store.Change{
		Kind:           store.ChangeMessageUpdated,
		ConversationID: convID,
		Message:        &model.Message{ID: uuid.New(), SenderID: senderID},
	})
	require.True(t, ok)
	assert.Equal(t, EventMessageUpdated, ev.Type)
	assert.Equal(t, senderID, ev.Meta.SenderID)
	assert.Equal(t, convID, ev.Meta.ConversationID)

	ev, ok = EventFromChange(store.Change{Kind: store.ChangeOutbox, PendingCount: 3})
	require.True(t, ok)
	assert.Equal(t, EventOutboxChanged, ev.Type)
	assert.Equal(t, map[string]interface{}{"pending": 3}, ev.Payload)

	ev, ok = EventFromChange(store.Change{
		Kind:   store.ChangeTyping,
		Typing: &model.TypingSignal{ConversationID: convID, UserID: senderID, Typing: true},
	})
	require.True(t, ok)
	assert.Equal(t, EventTyping, ev.Type)

	_, ok = EventFromChange(store.Change{Kind: store.ChangeMessageNew})
	assert.False(t, ok)

	_, ok = EventFromChange(store.Change{Kind: "something.else"})
	assert.False(t, ok)
}

func TestDescribeError(t *testing.T) {
	code, _ := describeError(fmt.Errorf("wrap: %w", compose.ErrCapabilityUnsupported))
	assert.Equal(t, "not_supported", code)

	code, _ = describeError(fmt.Errorf("%w: not a participant", store.ErrRejected))
	assert.Equal(t, "rejected", code)

	code, message := describeError(helper.NewForbiddenError("Not yours"))
	assert.Equal(t, "request_failed", code)
	assert.Equal(t, "Not yours", message)

	code, _ = describeError(errors.New("boom"))
	assert.Equal(t, "internal", code)
}

type stubBackend struct {
	conversations []model.Conversation
}

func (b *stubBackend) ListConversations(ctx context.Context, user model.UserDTO) ([]model.Conversation, error) {
	return b.conversations, nil
}

func (b *stubBackend) ListMessages(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, before *time.Time, limit int) ([]model.Message, error) {
	return nil, nil
}

func (b *stubBackend) InsertMessage(ctx context.Context, user model.UserDTO, msg model.Message) (*model.Message, error) {
	stored := msg.Clone()
	return &stored, nil
}

func (b *stubBackend) MarkRead(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, at time.Time) error {
	return nil
}

func (b *stubBackend) SendTyping(ctx context.Context, user model.UserDTO, signal model.TypingSignal) error {
	return nil
}

func (b *stubBackend) GetOrCreateConversation(ctx context.Context, user model.UserDTO, req model.CreateConversationRequest) (*model.Conversation, error) {
	return nil, errors.New("not implemented")
}

func (b *stubBackend) Subscribe(ctx context.Context, user model.UserDTO, conversationIDs []uuid.UUID) (store.Subscription, error) {
	return nil, errors.New("realtime unavailable")
}

func newFrameClient(t *testing.T) (*Client, model.Conversation) {
	t.Helper()

	user := model.UserDTO{ID: uuid.New(), TenantID: uuid.New(), Role: "student"}
	conv := model.Conversation{
		ID:           uuid.New(),
		Participants: []model.Participant{{UserID: user.ID}, {UserID: uuid.New()}},
	}

	st := store.New(user, &stubBackend{conversations: []model.Conversation{conv}})
	require.NoError(t, st.Load(context.Background()))

	c := NewClient(nil, nil, st, func() {}, ClientDeps{})
	t.Cleanup(func() {
		c.closeComposers()
		_ = st.Close()
	})
	return c, conv
}

func composerCount(c *Client) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.composers)
}

func TestHandleFrame(t *testing.T) {
	ctx := context.Background()

	t.Run("Fail - Compose Frame For Unknown Conversation", func(t *testing.T) {
		c, _ := newFrameClient(t)

		for i := 0; i < 3; i++ {
			err := c.handleFrame(ctx, Frame{Type: FrameComposeBlur, ConversationID: uuid.New()})
			assert.ErrorIs(t, err, store.ErrConversationNotFound)
		}

		assert.Zero(t, composerCount(c))
	})

	t.Run("Success - Compose Frame Creates One Composer", func(t *testing.T) {
		c, conv := newFrameClient(t)

		require.NoError(t, c.handleFrame(ctx, Frame{Type: FrameComposeInput, ConversationID: conv.ID, Text: "hi"}))
		require.NoError(t, c.handleFrame(ctx, Frame{Type: FrameComposeBlur, ConversationID: conv.ID}))

		assert.Equal(t, 1, composerCount(c))
	})

	t.Run("Success - Late Hello Upgrades Existing Composer", func(t *testing.T) {
		c, conv := newFrameClient(t)

		require.NoError(t, c.handleFrame(ctx, Frame{Type: FrameComposeInput, ConversationID: conv.ID, Text: "hi"}))
		err := c.handleFrame(ctx, Frame{Type: FrameRecordStart, ConversationID: conv.ID})
		require.ErrorIs(t, err, compose.ErrCapabilityUnsupported)

		require.NoError(t, c.handleFrame(ctx, Frame{Type: FrameHello, Capabilities: Capabilities{AudioRecording: true}}))

		require.NoError(t, c.handleFrame(ctx, Frame{Type: FrameRecordStart, ConversationID: conv.ID}))
		require.NoError(t, c.handleFrame(ctx, Frame{Type: FrameRecordStop, ConversationID: conv.ID}))
	})
}
