package service

import (
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

type ConversationService struct {
	validator *validator.Validate
	sessions  *SessionService
	presence  *PresenceService
}

func NewConversationService(validator *validator.Validate, sessions *SessionService, presence *PresenceService) *ConversationService {
	return &ConversationService{
		validator: validator,
		sessions:  sessions,
		presence:  presence,
	}
}

// GetChatList returns the aggregated chat list, newest first, optionally
// filtered by name.
func (s *ConversationService) GetChatList(ctx context.Context, user model.UserDTO, req model.GetChatListRequest) ([]model.ChatListEntryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", user.ID)
		return nil, helper.NewBadRequestError("")
	}

	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return nil, toAppError(err)
	}
	defer release()

	entries := helper.AggregateConversations(st.Conversations(), user.ID)
	entries = helper.FilterChatList(entries, req.Query, user.ID)

	primaries := make([]model.Conversation, len(entries))
	for i, e := range entries {
		primaries[i] = e.Primary
	}
	labels := s.presence.Labels(ctx, primaries, user.ID)

	out := make([]model.ChatListEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = ToChatListEntryResponse(e, labels[e.Primary.ID], user)
	}
	return out, nil
}

func (s *ConversationService) StartConversation(ctx context.Context, user model.UserDTO, req model.CreateConversationRequest) (*model.Conversation, error) {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", user.ID)
		return nil, helper.NewBadRequestError("")
	}
	if req.CounterpartID == user.ID {
		return nil, helper.NewBadRequestError("Cannot start a conversation with yourself")
	}

	st, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return nil, toAppError(err)
	}
	defer release()

	conv, err := st.StartConversation(ctx, req)
	if err != nil {
		return nil, toAppError(err)
	}
	return conv, nil
}

func ToChatListEntryResponse(e helper.ChatListEntry, presence model.PresenceLabel, viewer model.UserDTO) model.ChatListEntryResponse {
	avatar := e.Primary.AvatarURL
	if !e.Primary.IsGroup {
		if p := helper.Counterpart(e.Primary, viewer.ID); p != nil && p.AvatarURL != "" {
			avatar = p.AvatarURL
		}
	}

	resp := model.ChatListEntryResponse{
		Identity:        e.Identity,
		ConversationID:  e.Primary.ID,
		ConversationIDs: e.ConversationIDs,
		IsGroup:         e.Primary.IsGroup,
		DisplayName:     e.DisplayName,
		AvatarURL:       avatar,
		UnreadCount:     e.UnreadCount,
		LastMessage:     e.LastMessage,
		Presence:        presence,
	}
	if !e.LastActivityAt.IsZero() {
		at := e.LastActivityAt
		resp.LastActivityAt = &at
	}
	return resp
}
