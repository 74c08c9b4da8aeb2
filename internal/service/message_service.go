package service

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/store"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type MessageService struct {
	validator *validator.Validate
	sessions  *SessionService
	presence  *PresenceService
	location  *time.Location
	now       func() time.Time
}

func NewMessageService(cfg *config.AppConfig, validator *validator.Validate, sessions *SessionService, presence *PresenceService) *MessageService {
	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		slog.Warn("Unknown timezone, using UTC", "timezone", cfg.AppTimezone, "error", err)
		loc = time.UTC
	}

	return &MessageService{
		validator: validator,
		sessions:  sessions,
		presence:  presence,
		location:  loc,
		now:       time.Now,
	}
}

// GetTimeline returns the conversation rendered as days and sender groups.
// Without a cursor it returns everything held for the conversation; with one
// it returns the page before it.
func (s *MessageService) GetTimeline(ctx context.Context, user model.UserDTO, req model.GetMessagesRequest) (*model.TimelineResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", user.ID)
		return nil, helper.NewBadRequestError("")
	}

	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return nil, toAppError(err)
	}
	defer release()

	var (
		messages []model.Message
		hasMore  bool
	)
	if req.Before == nil {
		messages, err = st.OpenConversation(ctx, req.ConversationID)
		hasMore = st.HasMore(req.ConversationID)
	} else {
		messages, hasMore, err = st.LoadOlder(ctx, req.ConversationID, req.Limit)
	}
	if err != nil {
		return nil, toAppError(err)
	}

	conv, ok := st.Conversation(req.ConversationID)
	if !ok {
		return nil, helper.NewNotFoundError("Conversation not found")
	}

	return &model.TimelineResponse{
		ConversationID: conv.ID,
		Days:           helper.BuildTimeline(messages, user.ID, conv.Participants, s.location, s.now()),
		TypingUserIDs:  st.TypingUsers(conv.ID),
		Presence:       s.presence.Label(ctx, conv, user.ID),
		HasMore:        hasMore,
	}, nil
}

// SendMessage reports pending=true when the message was queued for retry
// instead of persisted.
func (s *MessageService) SendMessage(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, req model.SendMessageRequest) (*model.Message, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", user.ID)
		return nil, false, helper.NewBadRequestError("")
	}

	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return nil, false, toAppError(err)
	}
	defer release()

	msg, err := st.Send(ctx, conversationID, model.SendMessagePayload{
		Content:     req.Content,
		Attachments: req.Attachments,
		MessageType: helper.InferMessageType(req.Attachments),
	})
	if errors.Is(err, store.ErrMessagePending) {
		return msg, true, nil
	}
	if err != nil {
		return nil, false, toAppError(err)
	}
	return msg, false, nil
}

func (s *MessageService) MarkRead(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, req model.MarkReadRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return helper.NewBadRequestError("")
	}

	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return toAppError(err)
	}
	defer release()

	var at time.Time
	if req.At != nil {
		at = req.At.UTC()
	}
	return toAppError(st.MarkRead(ctx, conversationID, at))
}

func (s *MessageService) SetTyping(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, req model.TypingRequest) error {
	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return toAppError(err)
	}
	defer release()

	if req.Typing {
		return toAppError(st.StartTyping(ctx, conversationID))
	}
	return toAppError(st.StopTyping(ctx, conversationID))
}

func (s *MessageService) GetOutbox(ctx context.Context, user model.UserDTO) (*model.OutboxResponse, error) {
	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return nil, toAppError(err)
	}
	defer release()

	pending := st.Pending()
	resp := &model.OutboxResponse{
		Pending:  len(pending),
		Messages: make([]model.Message, len(pending)),
	}
	for i, p := range pending {
		resp.Messages[i] = p.Message
	}
	return resp, nil
}

func (s *MessageService) RetryOutbox(ctx context.Context, user model.UserDTO) (*model.RetryResult, error) {
	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return nil, toAppError(err)
	}
	defer release()

	result, err := st.RetryPending(ctx)
	if err != nil {
		return nil, toAppError(err)
	}
	return &result, nil
}

func (s *MessageService) DiscardPending(ctx context.Context, user model.UserDTO, messageID uuid.UUID) error {
	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return toAppError(err)
	}
	defer release()

	return toAppError(st.DiscardPending(ctx, messageID))
}
