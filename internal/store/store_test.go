package store

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscription struct {
	events chan model.RealtimeEvent
	mu     sync.Mutex
	added  []uuid.UUID
	once   sync.Once
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{events: make(chan model.RealtimeEvent, 16)}
}

func (s *fakeSubscription) Events() <-chan model.RealtimeEvent { return s.events }

func (s *fakeSubscription) Add(ctx context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, ids...)
	return nil
}

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type fakeBackend struct {
	mu            sync.Mutex
	conversations []model.Conversation
	messages      map[uuid.UUID][]model.Message
	insertErr     error
	inserted      []model.Message
	readCalls     int
	typing        []model.TypingSignal
	subscribeErr  error
	sub           *fakeSubscription
}

func (b *fakeBackend) ListConversations(ctx context.Context, user model.UserDTO) ([]model.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations, nil
}

func (b *fakeBackend) ListMessages(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, before *time.Time, limit int) ([]model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []model.Message
	all := b.messages[conversationID]
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if before != nil && !all[i].CreatedAt.Before(*before) {
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (b *fakeBackend) InsertMessage(ctx context.Context, user model.UserDTO, msg model.Message) (*model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.insertErr != nil {
		return nil, b.insertErr
	}
	b.inserted = append(b.inserted, msg)
	stored := msg.Clone()
	return &stored, nil
}

func (b *fakeBackend) MarkRead(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readCalls++
	return nil
}

func (b *fakeBackend) SendTyping(ctx context.Context, user model.UserDTO, signal model.TypingSignal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typing = append(b.typing, signal)
	return nil
}

func (b *fakeBackend) GetOrCreateConversation(ctx context.Context, user model.UserDTO, req model.CreateConversationRequest) (*model.Conversation, error) {
	conv := model.Conversation{
		ID:        uuid.New(),
		UpdatedAt: time.Now(),
		Participants: []model.Participant{
			{UserID: user.ID},
			{UserID: req.CounterpartID},
		},
	}
	return &conv, nil
}

func (b *fakeBackend) Subscribe(ctx context.Context, user model.UserDTO, conversationIDs []uuid.UUID) (Subscription, error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	b.sub = newFakeSubscription()
	return b.sub, nil
}

func (b *fakeBackend) setInsertErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insertErr = err
}

type memoryOutbox struct {
	mu      sync.Mutex
	pending map[uuid.UUID]model.PendingMessage
}

func (m *memoryOutbox) SavePending(ctx context.Context, userID uuid.UUID, p model.PendingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		m.pending = make(map[uuid.UUID]model.PendingMessage)
	}
	m.pending[p.Message.ID] = p
	return nil
}

func (m *memoryOutbox) RemovePending(ctx context.Context, userID uuid.UUID, messageID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, messageID)
	return nil
}

func (m *memoryOutbox) ListPending(ctx context.Context, userID uuid.UUID) ([]model.PendingMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PendingMessage, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, p)
	}
	return out, nil
}

type storeFixture struct {
	store        *Store
	backend      *fakeBackend
	user         model.UserDTO
	counterpart  uuid.UUID
	conversation model.Conversation
}

func newStoreFixture(t *testing.T, opts ...Option) *storeFixture {
	user := model.UserDTO{ID: uuid.New(), TenantID: uuid.New(), Role: constant.RoleStudent}
	counterpart := uuid.New()
	conv := model.Conversation{
		ID:        uuid.New(),
		UpdatedAt: time.Now().Add(-time.Hour),
		Participants: []model.Participant{
			{UserID: user.ID},
			{UserID: counterpart},
		},
	}

	backend := &fakeBackend{
		conversations: []model.Conversation{conv},
		messages:      make(map[uuid.UUID][]model.Message),
	}

	s := New(user, backend, opts...)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Load(context.Background()))

	return &storeFixture{store: s, backend: backend, user: user, counterpart: counterpart, conversation: conv}
}

func (f *storeFixture) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	assert.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestStoreSend(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Optimistic Then Durable", func(t *testing.T) {
		f := newStoreFixture(t)

		var kinds []string
		var mu sync.Mutex
		f.store.OnChange(func(c Change) {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, c.Kind)
		})

		msg, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: " hello "})

		require.NoError(t, err)
		assert.Equal(t, constant.MessageStatusSent, msg.Status)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, constant.MessageTypeText, msg.Type)

		messages := f.store.Messages(f.conversation.ID)
		require.Len(t, messages, 1)
		assert.Equal(t, msg.ID, messages[0].ID)
		assert.Equal(t, constant.MessageStatusSent, messages[0].Status)

		require.Len(t, f.backend.inserted, 1)
		assert.Empty(t, f.backend.inserted[0].Status)

		mu.Lock()
		assert.Equal(t, []string{ChangeMessageNew, ChangeMessageUpdated}, kinds)
		mu.Unlock()

		conv, ok := f.store.Conversation(f.conversation.ID)
		require.True(t, ok)
		assert.Equal(t, msg.ID, conv.LastMessage.ID)
		assert.Zero(t, conv.UnreadCount)
	})

	t.Run("Fail - Empty Payload", func(t *testing.T) {
		f := newStoreFixture(t)

		_, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "  "})

		assert.ErrorIs(t, err, ErrEmptyPayload)
		assert.Empty(t, f.store.Messages(f.conversation.ID))
	})

	t.Run("Fail - Unknown Conversation", func(t *testing.T) {
		f := newStoreFixture(t)

		_, err := f.store.Send(ctx, uuid.New(), model.SendMessagePayload{Content: "hi"})

		assert.ErrorIs(t, err, ErrConversationNotFound)
	})

	t.Run("Success - Transient Failure Queues Message", func(t *testing.T) {
		persisted := &memoryOutbox{}
		f := newStoreFixture(t, WithOutboxStore(persisted))
		f.backend.setInsertErr(errors.New("connection reset"))

		msg, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "hello"})

		assert.ErrorIs(t, err, ErrMessagePending)
		require.NotNil(t, msg)
		assert.Equal(t, constant.MessageStatusFailed, msg.Status)
		assert.Equal(t, 1, f.store.PendingCount())
		assert.Len(t, persisted.pending, 1)

		messages := f.store.Messages(f.conversation.ID)
		require.Len(t, messages, 1)
		assert.Equal(t, constant.MessageStatusFailed, messages[0].Status)
	})

	t.Run("Fail - Rejected Message Is Not Queued", func(t *testing.T) {
		f := newStoreFixture(t)
		f.backend.setInsertErr(ErrRejected)

		_, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "hello"})

		assert.ErrorIs(t, err, ErrRejected)
		assert.Zero(t, f.store.PendingCount())
		assert.Empty(t, f.store.Messages(f.conversation.ID))

		conv, ok := f.store.Conversation(f.conversation.ID)
		require.True(t, ok)
		assert.Nil(t, conv.LastMessage)
		assert.Nil(t, conv.LastMessageAt)
		assert.Equal(t, f.conversation.UpdatedAt, conv.UpdatedAt)
	})

	t.Run("Fail - Rejected Message Restores Previous Summary", func(t *testing.T) {
		f := newStoreFixture(t)

		earlier, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "earlier"})
		require.NoError(t, err)
		before, _ := f.store.Conversation(f.conversation.ID)

		f.backend.setInsertErr(ErrRejected)
		_, err = f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "never stored"})
		require.ErrorIs(t, err, ErrRejected)

		conv, ok := f.store.Conversation(f.conversation.ID)
		require.True(t, ok)
		require.NotNil(t, conv.LastMessage)
		assert.Equal(t, earlier.ID, conv.LastMessage.ID)
		require.NotNil(t, conv.LastMessageAt)
		assert.True(t, conv.LastMessageAt.Equal(*before.LastMessageAt))
		assert.True(t, conv.UpdatedAt.Equal(before.UpdatedAt))

		entries := helper.AggregateConversations(f.store.Conversations(), f.user.ID)
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].LastMessage)
		assert.Equal(t, "earlier", entries[0].LastMessage.Content)
	})

	t.Run("Success - Queued Message Summary Shows Failed", func(t *testing.T) {
		f := newStoreFixture(t)
		f.backend.setInsertErr(errors.New("connection reset"))

		msg, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "later"})
		require.ErrorIs(t, err, ErrMessagePending)

		conv, ok := f.store.Conversation(f.conversation.ID)
		require.True(t, ok)
		require.NotNil(t, conv.LastMessage)
		assert.Equal(t, msg.ID, conv.LastMessage.ID)
		assert.Equal(t, constant.MessageStatusFailed, conv.LastMessage.Status)
	})
}

func TestStoreRetryPending(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Retry Counts", func(t *testing.T) {
		f := newStoreFixture(t)
		f.backend.setInsertErr(errors.New("timeout"))

		for _, text := range []string{"one", "two"} {
			_, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: text})
			require.ErrorIs(t, err, ErrMessagePending)
		}
		require.Equal(t, 2, f.store.PendingCount())

		result, err := f.store.RetryPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.RetryResult{Succeeded: 0, Failed: 2}, result)
		assert.Equal(t, 2, f.store.PendingCount())
		for _, p := range f.store.Pending() {
			assert.Equal(t, 2, p.Attempts)
			assert.Equal(t, "timeout", p.LastError)
		}

		f.backend.setInsertErr(nil)
		result, err = f.store.RetryPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.RetryResult{Succeeded: 2, Failed: 0}, result)
		assert.Zero(t, f.store.PendingCount())

		messages := f.store.Messages(f.conversation.ID)
		require.Len(t, messages, 2)
		for _, m := range messages {
			assert.Equal(t, constant.MessageStatusSent, m.Status)
		}
	})

	t.Run("Success - Realtime Copy Clears Pending", func(t *testing.T) {
		f := newStoreFixture(t)
		f.backend.setInsertErr(errors.New("timeout"))

		msg, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "late ack"})
		require.ErrorIs(t, err, ErrMessagePending)

		delivered := *msg
		delivered.Status = ""
		f.backend.sub.events <- model.RealtimeEvent{Type: model.RealtimeMessageNew, ConversationID: f.conversation.ID, Message: &delivered}

		f.waitFor(t, func() bool { return f.store.PendingCount() == 0 })
		messages := f.store.Messages(f.conversation.ID)
		require.Len(t, messages, 1)
		assert.Equal(t, constant.MessageStatusSent, messages[0].Status)
	})

	t.Run("Success - Restored From Previous Session", func(t *testing.T) {
		persisted := &memoryOutbox{}
		conversationID := uuid.New()
		queued := model.Message{ID: uuid.New(), ConversationID: conversationID, Content: "saved", CreatedAt: time.Now()}
		require.NoError(t, persisted.SavePending(ctx, uuid.Nil, model.PendingMessage{Message: queued, Attempts: 1, QueuedAt: time.Now()}))

		user := model.UserDTO{ID: uuid.New()}
		backend := &fakeBackend{
			conversations: []model.Conversation{{ID: conversationID, Participants: []model.Participant{{UserID: user.ID}}}},
			messages:      map[uuid.UUID][]model.Message{},
		}
		s := New(user, backend, WithOutboxStore(persisted))
		defer s.Close()

		require.NoError(t, s.Load(ctx))

		assert.Equal(t, 1, s.PendingCount())
		messages := s.Messages(conversationID)
		require.Len(t, messages, 1)
		assert.Equal(t, constant.MessageStatusFailed, messages[0].Status)

		result, err := s.RetryPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Succeeded)
		assert.Empty(t, persisted.pending)
	})

	t.Run("Success - Discard Pending", func(t *testing.T) {
		f := newStoreFixture(t)
		f.backend.setInsertErr(errors.New("timeout"))

		msg, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "drop me"})
		require.ErrorIs(t, err, ErrMessagePending)

		require.NoError(t, f.store.DiscardPending(ctx, msg.ID))

		assert.Zero(t, f.store.PendingCount())
		assert.Empty(t, f.store.Messages(f.conversation.ID))
		assert.ErrorIs(t, f.store.DiscardPending(ctx, msg.ID), ErrPendingNotFound)

		conv, ok := f.store.Conversation(f.conversation.ID)
		require.True(t, ok)
		assert.Nil(t, conv.LastMessage)
		assert.Nil(t, conv.LastMessageAt)
	})

	t.Run("Success - Discard Falls Back To Held Message", func(t *testing.T) {
		f := newStoreFixture(t)

		kept, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "kept"})
		require.NoError(t, err)

		f.backend.setInsertErr(errors.New("timeout"))
		msg, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "abandoned"})
		require.ErrorIs(t, err, ErrMessagePending)

		require.NoError(t, f.store.DiscardPending(ctx, msg.ID))

		conv, ok := f.store.Conversation(f.conversation.ID)
		require.True(t, ok)
		require.NotNil(t, conv.LastMessage)
		assert.Equal(t, kept.ID, conv.LastMessage.ID)
		require.NotNil(t, conv.LastMessageAt)
		assert.True(t, conv.LastMessageAt.Equal(kept.CreatedAt))
	})
}

func TestStoreRealtime(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Own Message Deduplicated", func(t *testing.T) {
		f := newStoreFixture(t)

		msg, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "hi"})
		require.NoError(t, err)

		echo := *msg
		echo.Status = ""
		f.store.HandleEvent(model.RealtimeEvent{Type: model.RealtimeMessageNew, ConversationID: f.conversation.ID, Message: &echo})

		assert.Len(t, f.store.Messages(f.conversation.ID), 1)
		conv, _ := f.store.Conversation(f.conversation.ID)
		assert.Zero(t, conv.UnreadCount)
	})

	t.Run("Success - Counterpart Message Increments Unread Once", func(t *testing.T) {
		f := newStoreFixture(t)

		incoming := model.Message{ID: uuid.New(), ConversationID: f.conversation.ID, SenderID: f.counterpart, Content: "yo", CreatedAt: time.Now()}
		event := model.RealtimeEvent{Type: model.RealtimeMessageNew, ConversationID: f.conversation.ID, Message: &incoming}

		f.store.HandleEvent(event)
		f.store.HandleEvent(event)

		conv, _ := f.store.Conversation(f.conversation.ID)
		assert.Equal(t, 1, conv.UnreadCount)
		assert.Len(t, f.store.Messages(f.conversation.ID), 1)
	})

	t.Run("Success - Read Cursor Last Write Wins", func(t *testing.T) {
		f := newStoreFixture(t)
		later := time.Now()
		earlier := later.Add(-time.Hour)

		for _, at := range []time.Time{later, earlier} {
			f.store.HandleEvent(model.RealtimeEvent{
				Type:       model.RealtimeReadCursor,
				ReadCursor: &model.ReadCursor{ConversationID: f.conversation.ID, UserID: f.counterpart, LastReadAt: at},
			})
		}

		conv, _ := f.store.Conversation(f.conversation.ID)
		for _, p := range conv.Participants {
			if p.UserID == f.counterpart {
				require.NotNil(t, p.LastReadAt)
				assert.True(t, p.LastReadAt.Equal(earlier))
			}
		}
	})

	t.Run("Success - Typing Expires", func(t *testing.T) {
		now := time.Now()
		f := newStoreFixture(t, WithNow(func() time.Time { return now }))

		f.store.HandleEvent(model.RealtimeEvent{
			Type:   model.RealtimeTyping,
			Typing: &model.TypingSignal{ConversationID: f.conversation.ID, UserID: f.counterpart, Typing: true, ExpiresAt: now.Add(constant.TypingExpiry)},
		})
		assert.Equal(t, []uuid.UUID{f.counterpart}, f.store.TypingUsers(f.conversation.ID))

		now = now.Add(constant.TypingExpiry)
		assert.Empty(t, f.store.TypingUsers(f.conversation.ID))
	})

	t.Run("Success - Own Typing Ignored", func(t *testing.T) {
		f := newStoreFixture(t)

		f.store.HandleEvent(model.RealtimeEvent{
			Type:   model.RealtimeTyping,
			Typing: &model.TypingSignal{ConversationID: f.conversation.ID, UserID: f.user.ID, Typing: true, ExpiresAt: time.Now().Add(time.Minute)},
		})

		assert.Empty(t, f.store.TypingUsers(f.conversation.ID))
	})

	t.Run("Success - New Conversation Subscribed", func(t *testing.T) {
		f := newStoreFixture(t)
		conv := model.Conversation{ID: uuid.New(), UpdatedAt: time.Now()}

		f.store.HandleEvent(model.RealtimeEvent{Type: model.RealtimeConversationNew, Conversation: &conv})

		_, ok := f.store.Conversation(conv.ID)
		assert.True(t, ok)
		assert.Contains(t, f.backend.sub.added, conv.ID)
	})

	t.Run("Success - Subscribe Failure Degrades", func(t *testing.T) {
		user := model.UserDTO{ID: uuid.New()}
		backend := &fakeBackend{
			conversations: []model.Conversation{{ID: uuid.New()}},
			subscribeErr:  errors.New("pubsub down"),
		}
		s := New(user, backend)
		defer s.Close()

		require.NoError(t, s.Load(ctx))
		assert.Len(t, s.Conversations(), 1)
	})
}

func TestStoreOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Open And Load Older", func(t *testing.T) {
		f := newStoreFixture(t)
		base := time.Now().Add(-24 * time.Hour)
		var history []model.Message
		for i := 0; i < constant.DefaultMessagePageSize+5; i++ {
			history = append(history, model.Message{
				ID:             uuid.New(),
				ConversationID: f.conversation.ID,
				SenderID:       f.counterpart,
				CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			})
		}
		f.backend.messages[f.conversation.ID] = history

		messages, err := f.store.OpenConversation(ctx, f.conversation.ID)
		require.NoError(t, err)
		assert.Len(t, messages, constant.DefaultMessagePageSize)
		assert.True(t, f.store.HasMore(f.conversation.ID))
		for i := 1; i < len(messages); i++ {
			assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
		}

		older, hasMore, err := f.store.LoadOlder(ctx, f.conversation.ID, 20)
		require.NoError(t, err)
		assert.Len(t, older, 5)
		assert.False(t, hasMore)
		assert.Len(t, f.store.Messages(f.conversation.ID), constant.DefaultMessagePageSize+5)
		assert.Equal(t, history[0].ID, f.store.Messages(f.conversation.ID)[0].ID)
	})

	t.Run("Fail - Open Unknown Conversation", func(t *testing.T) {
		f := newStoreFixture(t)
		_, err := f.store.OpenConversation(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrConversationNotFound)
	})

	t.Run("Success - Mark Read Resets Unread", func(t *testing.T) {
		f := newStoreFixture(t)
		incoming := model.Message{ID: uuid.New(), ConversationID: f.conversation.ID, SenderID: f.counterpart, CreatedAt: time.Now()}
		f.store.HandleEvent(model.RealtimeEvent{Type: model.RealtimeMessageNew, Message: &incoming})

		conv, _ := f.store.Conversation(f.conversation.ID)
		require.Equal(t, 1, conv.UnreadCount)

		require.NoError(t, f.store.MarkRead(ctx, f.conversation.ID, time.Time{}))

		conv, _ = f.store.Conversation(f.conversation.ID)
		assert.Zero(t, conv.UnreadCount)
		assert.Equal(t, 1, f.backend.readCalls)
	})

	t.Run("Success - Typing Signals Forwarded", func(t *testing.T) {
		f := newStoreFixture(t)

		require.NoError(t, f.store.StartTyping(ctx, f.conversation.ID))
		require.NoError(t, f.store.StopTyping(ctx, f.conversation.ID))

		require.Len(t, f.backend.typing, 2)
		assert.True(t, f.backend.typing[0].Typing)
		assert.False(t, f.backend.typing[1].Typing)
		assert.Equal(t, f.user.ID, f.backend.typing[0].UserID)
	})

	t.Run("Success - Start Conversation", func(t *testing.T) {
		f := newStoreFixture(t)
		other := uuid.New()

		conv, err := f.store.StartConversation(ctx, model.CreateConversationRequest{CounterpartID: other})

		require.NoError(t, err)
		_, ok := f.store.Conversation(conv.ID)
		assert.True(t, ok)
		assert.Len(t, f.store.Conversations(), 2)
	})

	t.Run("Success - Close Is Idempotent", func(t *testing.T) {
		f := newStoreFixture(t)

		require.NoError(t, f.store.Close())
		require.NoError(t, f.store.Close())

		_, err := f.store.Send(ctx, f.conversation.ID, model.SendMessagePayload{Content: "hi"})
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("Success - Unsubscribe Listener", func(t *testing.T) {
		f := newStoreFixture(t)
		calls := 0
		unsubscribe := f.store.OnChange(func(Change) { calls++ })

		require.NoError(t, f.store.MarkRead(ctx, f.conversation.ID, time.Now()))
		unsubscribe()
		require.NoError(t, f.store.MarkRead(ctx, f.conversation.ID, time.Now()))

		assert.Equal(t, 1, calls)
	})
}
