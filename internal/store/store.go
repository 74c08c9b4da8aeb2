package store

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	ChangeMessageNew          = "message.new"
	ChangeMessageUpdated      = "message.updated"
	ChangeMessageRemoved      = "message.removed"
	ChangeConversationUpdated = "conversation.updated"
	ChangeRead                = "chat.read"
	ChangeTyping              = "chat.typing"
	ChangeOutbox              = "outbox.changed"
)

// Change describes one mutation of the store's state.
type Change struct {
	Kind           string
	ConversationID uuid.UUID
	Message        *model.Message
	Typing         *model.TypingSignal
	ReadCursor     *model.ReadCursor
	Conversation   *model.Conversation
	PendingCount   int
}

type Option func(*Store)

func WithOutboxStore(persist OutboxStore) Option {
	return func(s *Store) { s.outbox = NewOutbox(s.user.ID, persist) }
}

func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the canonical conversation and message state of one user
// session. Realtime events are applied by a single consumer goroutine; every
// other component reads snapshots and writes through the exported methods.
type Store struct {
	user    model.UserDTO
	backend Backend
	outbox  *Outbox
	now     func() time.Time

	mu            sync.RWMutex
	conversations map[uuid.UUID]*model.Conversation
	messages      map[uuid.UUID][]model.Message
	opened        map[uuid.UUID]bool
	hasMore       map[uuid.UUID]bool
	typing        map[uuid.UUID]map[uuid.UUID]time.Time
	priors        map[uuid.UUID]Summary
	loaded        bool
	sub           Subscription
	closed        bool

	listenersMu  sync.Mutex
	listeners    map[int]func(Change)
	nextListener int

	retryMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	consumers sync.WaitGroup
	closeOnce sync.Once
}

func New(user model.UserDTO, backend Backend, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		user:          user,
		backend:       backend,
		now:           time.Now,
		conversations: make(map[uuid.UUID]*model.Conversation),
		messages:      make(map[uuid.UUID][]model.Message),
		opened:        make(map[uuid.UUID]bool),
		hasMore:       make(map[uuid.UUID]bool),
		typing:        make(map[uuid.UUID]map[uuid.UUID]time.Time),
		priors:        make(map[uuid.UUID]Summary),
		listeners:     make(map[int]func(Change)),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.outbox == nil {
		s.outbox = NewOutbox(user.ID, nil)
	}
	return s
}

func (s *Store) User() model.UserDTO {
	return s.user
}

// Load fetches the conversation list, restores persisted pending messages and
// subscribes to realtime events. Calling it again refreshes the list.
// Subscription failures leave the store usable with stale data.
func (s *Store) Load(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}

	conversations, err := s.backend.ListConversations(ctx, s.user)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	s.mu.Lock()
	firstLoad := !s.loaded
	s.loaded = true
	ids := make([]uuid.UUID, 0, len(conversations))
	for _, c := range conversations {
		conv := c.Clone()
		if existing, ok := s.conversations[c.ID]; ok && existing.LastMessage != nil &&
			(conv.LastMessage == nil || existing.LastMessage.CreatedAt.After(conv.LastMessage.CreatedAt)) {
			conv.LastMessage = existing.LastMessage
		}
		s.conversations[c.ID] = &conv
		ids = append(ids, c.ID)
	}
	sub := s.sub
	s.mu.Unlock()

	if firstLoad {
		if err := s.outbox.Restore(ctx); err != nil {
			slog.Warn("Failed to restore pending messages", "error", err, "userID", s.user.ID)
		}
		s.restorePendingMessages()
	}

	if sub == nil {
		s.subscribe(ids)
	} else if err := sub.Add(ctx, ids...); err != nil {
		slog.Warn("Failed to extend realtime subscription", "error", err, "userID", s.user.ID)
	}

	s.emit(Change{Kind: ChangeConversationUpdated})
	return nil
}

func (s *Store) restorePendingMessages() {
	pending := s.outbox.List()
	if len(pending) == 0 {
		return
	}

	s.mu.Lock()
	for _, p := range pending {
		msg := p.Message
		msg.Status = constant.MessageStatusFailed
		s.messages[msg.ConversationID] = MergeMessages(s.messages[msg.ConversationID], []model.Message{msg})
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeOutbox, PendingCount: len(pending)})
}

func (s *Store) subscribe(ids []uuid.UUID) {
	sub, err := s.backend.Subscribe(s.ctx, s.user, ids)
	if err != nil {
		slog.Warn("Failed to subscribe to realtime events", "error", err, "userID", s.user.ID)
		return
	}

	s.mu.Lock()
	if s.closed || s.sub != nil {
		s.mu.Unlock()
		_ = sub.Close()
		return
	}
	s.sub = sub
	s.mu.Unlock()

	s.consumers.Add(1)
	go s.consume(sub)
}

func (s *Store) consume(sub Subscription) {
	defer s.consumers.Done()

	events := sub.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.HandleEvent(ev)
		}
	}
}

// HandleEvent applies a realtime event. Messages are deduplicated by id so an
// event for a message this session already holds only refreshes it.
func (s *Store) HandleEvent(ev model.RealtimeEvent) {
	switch ev.Type {
	case model.RealtimeMessageNew:
		if ev.Message != nil {
			s.applyRemoteMessage(*ev.Message)
		}
	case model.RealtimeReadCursor:
		if ev.ReadCursor != nil {
			s.applyReadCursor(*ev.ReadCursor)
		}
	case model.RealtimeTyping:
		if ev.Typing != nil {
			s.applyTyping(*ev.Typing)
		}
	case model.RealtimeConversationNew:
		if ev.Conversation != nil {
			s.upsertConversation(ev.Conversation.Clone())
		}
	default:
		slog.Debug("Ignoring unknown realtime event", "type", ev.Type, "userID", s.user.ID)
	}
}

func (s *Store) applyRemoteMessage(msg model.Message) {
	msg.Status = constant.MessageStatusSent

	s.mu.Lock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		s.mu.Unlock()
		slog.Debug("Dropping message for unknown conversation", "conversationID", msg.ConversationID, "userID", s.user.ID)
		return
	}

	known := containsMessage(s.messages[msg.ConversationID], msg.ID) ||
		(conv.LastMessage != nil && conv.LastMessage.ID == msg.ID)
	s.messages[msg.ConversationID] = MergeMessages(s.messages[msg.ConversationID], []model.Message{msg})
	ApplyMessage(conv, msg, s.user.ID, known)
	delete(s.typing[msg.ConversationID], msg.SenderID)
	s.mu.Unlock()

	if s.outbox.Remove(context.Background(), msg.ID) {
		s.emit(Change{Kind: ChangeOutbox, PendingCount: s.outbox.Len()})
	}

	kind := ChangeMessageNew
	if known {
		kind = ChangeMessageUpdated
	}
	s.emit(Change{Kind: kind, ConversationID: msg.ConversationID, Message: &msg})
}

func (s *Store) applyReadCursor(cursor model.ReadCursor) {
	s.mu.Lock()
	conv, ok := s.conversations[cursor.ConversationID]
	if ok {
		ApplyReadCursor(conv, cursor, s.user.ID)
	}
	s.mu.Unlock()

	if ok {
		s.emit(Change{Kind: ChangeRead, ConversationID: cursor.ConversationID, ReadCursor: &cursor})
	}
}

func (s *Store) applyTyping(signal model.TypingSignal) {
	if signal.UserID == s.user.ID {
		return
	}

	s.mu.Lock()
	if _, ok := s.conversations[signal.ConversationID]; !ok {
		s.mu.Unlock()
		return
	}
	users := s.typing[signal.ConversationID]
	if signal.Typing {
		if users == nil {
			users = make(map[uuid.UUID]time.Time)
			s.typing[signal.ConversationID] = users
		}
		expires := signal.ExpiresAt
		if expires.IsZero() {
			expires = s.now().Add(constant.TypingExpiry)
		}
		users[signal.UserID] = expires
	} else {
		delete(users, signal.UserID)
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeTyping, ConversationID: signal.ConversationID, Typing: &signal})
}

func (s *Store) upsertConversation(conv model.Conversation) {
	s.mu.Lock()
	if existing, ok := s.conversations[conv.ID]; ok {
		if conv.LastMessage == nil {
			conv.LastMessage = existing.LastMessage
		}
		if conv.UnreadCount == 0 {
			conv.UnreadCount = existing.UnreadCount
		}
	}
	s.conversations[conv.ID] = &conv
	sub := s.sub
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Add(s.ctx, conv.ID); err != nil {
			slog.Warn("Failed to subscribe to conversation", "error", err, "conversationID", conv.ID)
		}
	}

	out := conv.Clone()
	s.emit(Change{Kind: ChangeConversationUpdated, ConversationID: conv.ID, Conversation: &out})
}

func containsMessage(messages []model.Message, id uuid.UUID) bool {
	for _, m := range messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Conversations returns a snapshot of the raw conversations, most recent
// first.
func (s *Store) Conversations() []model.Conversation {
	s.mu.RLock()
	out := make([]model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := helper.ConversationRecency(out[i]), helper.ConversationRecency(out[j])
		if !ri.Equal(rj) {
			return ri.After(rj)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *Store) Conversation(id uuid.UUID) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return model.Conversation{}, false
	}
	return c.Clone(), true
}

func (s *Store) Messages(conversationID uuid.UUID) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.messages[conversationID]
	out := make([]model.Message, len(src))
	for i, m := range src {
		out[i] = m.Clone()
	}
	return out
}

func (s *Store) HasMore(conversationID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore[conversationID]
}

// OpenConversation loads the newest page of a conversation the first time it
// is opened and returns the messages held for it.
func (s *Store) OpenConversation(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	_, exists := s.conversations[conversationID]
	opened := s.opened[conversationID]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrConversationNotFound
	}
	if opened {
		return s.Messages(conversationID), nil
	}

	page, err := s.backend.ListMessages(ctx, s.user, conversationID, nil, constant.DefaultMessagePageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	s.mu.Lock()
	s.messages[conversationID] = MergeMessages(page, s.messages[conversationID])
	s.opened[conversationID] = true
	s.hasMore[conversationID] = len(page) >= constant.DefaultMessagePageSize
	s.mu.Unlock()

	return s.Messages(conversationID), nil
}

// LoadOlder fetches the page before the oldest held message.
func (s *Store) LoadOlder(ctx context.Context, conversationID uuid.UUID, limit int) ([]model.Message, bool, error) {
	if s.isClosed() {
		return nil, false, ErrClosed
	}
	if limit <= 0 || limit > constant.MaxMessagePageSize {
		limit = constant.DefaultMessagePageSize
	}

	s.mu.RLock()
	_, exists := s.conversations[conversationID]
	var before *time.Time
	for _, m := range s.messages[conversationID] {
		if !isProvisional(m) {
			at := m.CreatedAt
			before = &at
			break
		}
	}
	s.mu.RUnlock()

	if !exists {
		return nil, false, ErrConversationNotFound
	}

	page, err := s.backend.ListMessages(ctx, s.user, conversationID, before, limit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list messages: %w", err)
	}

	hasMore := len(page) >= limit

	s.mu.Lock()
	s.messages[conversationID] = MergeMessages(page, s.messages[conversationID])
	s.opened[conversationID] = true
	s.hasMore[conversationID] = hasMore
	s.mu.Unlock()

	out := make([]model.Message, len(page))
	for i, m := range page {
		out[i] = m.Clone()
	}
	helper.SortMessages(out)
	return out, hasMore, nil
}

// StartConversation resolves or creates the direct conversation with a
// counterpart.
func (s *Store) StartConversation(ctx context.Context, req model.CreateConversationRequest) (*model.Conversation, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	conv, err := s.backend.GetOrCreateConversation(ctx, s.user, req)
	if err != nil {
		return nil, err
	}

	s.upsertConversation(conv.Clone())

	out := conv.Clone()
	return &out, nil
}

// Send inserts the message locally with status sending and then durably. A
// transient failure keeps it as failed in the outbox and returns an error
// wrapping ErrMessagePending together with the local copy.
func (s *Store) Send(ctx context.Context, conversationID uuid.UUID, payload model.SendMessagePayload) (*model.Message, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" && len(payload.Attachments) == 0 {
		return nil, ErrEmptyPayload
	}
	if utf8.RuneCountInString(content) > constant.MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if len(payload.Attachments) > constant.MaxAttachmentsPerMessage {
		return nil, ErrTooManyAttachments
	}

	messageType := payload.MessageType
	if messageType == "" {
		messageType = helper.InferMessageType(payload.Attachments)
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	attachments := make([]model.Attachment, len(payload.Attachments))
	copy(attachments, payload.Attachments)

	msg := model.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       s.user.ID,
		Content:        content,
		Type:           messageType,
		Attachments:    attachments,
		CreatedAt:      s.now().UTC(),
		Status:         constant.MessageStatusSending,
	}

	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrConversationNotFound
	}
	s.messages[conversationID] = MergeMessages(s.messages[conversationID], []model.Message{msg})
	s.priors[msg.ID] = SummaryOf(conv)
	ApplyMessage(conv, msg, s.user.ID, false)
	s.mu.Unlock()

	optimistic := msg.Clone()
	s.emit(Change{Kind: ChangeMessageNew, ConversationID: conversationID, Message: &optimistic})

	stored, err := s.backend.InsertMessage(ctx, s.user, messageForInsert(msg))
	if err == nil {
		return s.confirm(msg.ID, stored), nil
	}

	if errors.Is(err, ErrRejected) {
		s.drop(conversationID, msg)
		s.emit(Change{Kind: ChangeMessageRemoved, ConversationID: conversationID, Message: &optimistic})
		return nil, err
	}

	slog.Warn("Failed to persist message, queued for retry", "error", err, "userID", s.user.ID, "messageID", msg.ID)

	failed := s.setStatus(conversationID, msg.ID, constant.MessageStatusFailed)
	s.outbox.Add(context.WithoutCancel(ctx), model.PendingMessage{
		Message:   messageForInsert(msg),
		Attempts:  1,
		LastError: err.Error(),
		QueuedAt:  s.now().UTC(),
	})
	s.emit(Change{Kind: ChangeOutbox, PendingCount: s.outbox.Len()})

	return failed, fmt.Errorf("%w: %v", ErrMessagePending, err)
}

// drop removes a provisional message and restores the conversation summary
// it displaced.
func (s *Store) drop(conversationID uuid.UUID, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[conversationID] = RemoveMessage(s.messages[conversationID], msg.ID)
	var prior *Summary
	if p, ok := s.priors[msg.ID]; ok {
		prior = &p
		delete(s.priors, msg.ID)
	}
	if conv, ok := s.conversations[conversationID]; ok {
		RetractMessage(conv, msg, prior, s.messages[conversationID])
	}
}

func messageForInsert(msg model.Message) model.Message {
	out := msg.Clone()
	out.Status = ""
	return out
}

// confirm replaces the local copy of a message with the stored one.
func (s *Store) confirm(id uuid.UUID, stored *model.Message) *model.Message {
	msg := stored.Clone()
	msg.ID = id
	msg.Status = constant.MessageStatusSent

	s.mu.Lock()
	delete(s.priors, id)
	s.messages[msg.ConversationID] = MergeMessages(s.messages[msg.ConversationID], []model.Message{msg})
	if conv, ok := s.conversations[msg.ConversationID]; ok {
		ApplyMessage(conv, msg, s.user.ID, true)
	}
	s.mu.Unlock()

	out := msg.Clone()
	s.emit(Change{Kind: ChangeMessageUpdated, ConversationID: msg.ConversationID, Message: &out})
	return &msg
}

func (s *Store) setStatus(conversationID, id uuid.UUID, status string) *model.Message {
	var updated *model.Message

	s.mu.Lock()
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].ID == id {
			if !isProvisional(msgs[i]) {
				break
			}
			msgs[i].Status = status
			m := msgs[i].Clone()
			updated = &m
			break
		}
	}
	if conv, ok := s.conversations[conversationID]; ok && updated != nil &&
		conv.LastMessage != nil && conv.LastMessage.ID == id {
		conv.LastMessage.Status = status
	}
	s.mu.Unlock()

	if updated != nil {
		s.emit(Change{Kind: ChangeMessageUpdated, ConversationID: conversationID, Message: updated})
	}
	return updated
}

// MarkRead advances the viewer's read cursor. A zero at means now.
func (s *Store) MarkRead(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	if s.isClosed() {
		return ErrClosed
	}
	if at.IsZero() {
		at = s.now().UTC()
	}

	cursor := model.ReadCursor{ConversationID: conversationID, UserID: s.user.ID, LastReadAt: at}

	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if ok {
		ApplyReadCursor(conv, cursor, s.user.ID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrConversationNotFound
	}

	s.emit(Change{Kind: ChangeRead, ConversationID: conversationID, ReadCursor: &cursor})

	if err := s.backend.MarkRead(ctx, s.user, conversationID, at); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return nil
}

func (s *Store) StartTyping(ctx context.Context, conversationID uuid.UUID) error {
	return s.sendTyping(ctx, conversationID, true)
}

func (s *Store) StopTyping(ctx context.Context, conversationID uuid.UUID) error {
	return s.sendTyping(ctx, conversationID, false)
}

func (s *Store) sendTyping(ctx context.Context, conversationID uuid.UUID, typing bool) error {
	if s.isClosed() {
		return ErrClosed
	}

	s.mu.RLock()
	_, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if !ok {
		return ErrConversationNotFound
	}

	return s.backend.SendTyping(ctx, s.user, model.TypingSignal{
		ConversationID: conversationID,
		UserID:         s.user.ID,
		Typing:         typing,
		ExpiresAt:      s.now().UTC().Add(constant.TypingExpiry),
	})
}

// TypingUsers returns counterparts whose typing signal has not expired.
func (s *Store) TypingUsers(conversationID uuid.UUID) []uuid.UUID {
	now := s.now()

	s.mu.Lock()
	users := s.typing[conversationID]
	out := make([]uuid.UUID, 0, len(users))
	for id, expires := range users {
		if now.Before(expires) {
			out = append(out, id)
		} else {
			delete(users, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s *Store) PendingCount() int {
	return s.outbox.Len()
}

func (s *Store) Pending() []model.PendingMessage {
	return s.outbox.List()
}

// RetryPending resends every pending message. Successes leave the outbox and
// are reconciled with the held copy; failures stay for a later attempt.
func (s *Store) RetryPending(ctx context.Context) (model.RetryResult, error) {
	if s.isClosed() {
		return model.RetryResult{}, ErrClosed
	}

	s.retryMu.Lock()
	defer s.retryMu.Unlock()

	var result model.RetryResult
	for _, p := range s.outbox.List() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		msg := p.Message
		s.setStatus(msg.ConversationID, msg.ID, constant.MessageStatusSending)

		stored, err := s.backend.InsertMessage(ctx, s.user, messageForInsert(msg))
		if err != nil {
			slog.Warn("Retry of pending message failed", "error", err, "userID", s.user.ID, "messageID", msg.ID)
			s.outbox.MarkFailed(ctx, msg.ID, err)
			s.setStatus(msg.ConversationID, msg.ID, constant.MessageStatusFailed)
			result.Failed++
			continue
		}

		s.outbox.Remove(ctx, msg.ID)
		s.confirm(msg.ID, stored)
		result.Succeeded++
	}

	s.emit(Change{Kind: ChangeOutbox, PendingCount: s.outbox.Len()})
	return result, nil
}

// DiscardPending abandons a pending message.
func (s *Store) DiscardPending(ctx context.Context, messageID uuid.UUID) error {
	if !s.outbox.Has(messageID) {
		return ErrPendingNotFound
	}

	var dropped model.Message
	for _, p := range s.outbox.List() {
		if p.Message.ID == messageID {
			dropped = p.Message
			break
		}
	}
	conversationID := dropped.ConversationID

	if !s.outbox.Remove(ctx, messageID) {
		return ErrPendingNotFound
	}

	s.drop(conversationID, dropped)

	s.emit(Change{Kind: ChangeMessageRemoved, ConversationID: conversationID, Message: &model.Message{ID: messageID, ConversationID: conversationID}})
	s.emit(Change{Kind: ChangeOutbox, PendingCount: s.outbox.Len()})
	return nil
}

// OnChange registers fn for every mutation and returns a function that
// removes it. fn must not block.
func (s *Store) OnChange(fn func(Change)) func() {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) emit(change Change) {
	s.listenersMu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close unsubscribes from realtime events and stops the consumer. It is
// idempotent.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()

		s.cancel()
		if sub != nil {
			err = sub.Close()
		}
		s.consumers.Wait()

		s.listenersMu.Lock()
		s.listeners = make(map[int]func(Change))
		s.listenersMu.Unlock()
	})
	return err
}
