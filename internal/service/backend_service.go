package service

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/repository"
	"RecruitTalkAPI/internal/store"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// BackendService is the data layer behind every per-user store. Each call
// checks that the user belongs to the conversation it touches; violations
// are reported as store.ErrRejected so they are never queued for retry.
type BackendService struct {
	conversations conversationRepository
	messages      messageRepository
	uploads       uploadLedger
	urls          helper.URLGenerator
	realtime      realtimeBus
	presignExpiry time.Duration
	now           func() time.Time
}

func NewBackendService(conversations conversationRepository, messages messageRepository, uploads uploadLedger, urls helper.URLGenerator, realtime realtimeBus, presignExpiry time.Duration) *BackendService {
	return &BackendService{
		conversations: conversations,
		messages:      messages,
		uploads:       uploads,
		urls:          urls,
		realtime:      realtime,
		presignExpiry: presignExpiry,
		now:           time.Now,
	}
}

func rejected(reason string) error {
	return fmt.Errorf("%w: %s", store.ErrRejected, reason)
}

func (s *BackendService) requireParticipant(ctx context.Context, user model.UserDTO, conversationID uuid.UUID) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, user.ID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return rejected("not a participant")
	}
	return nil
}

func (s *BackendService) ListConversations(ctx context.Context, user model.UserDTO) ([]model.Conversation, error) {
	conversations, err := s.conversations.ListForUser(ctx, user.TenantID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

func (s *BackendService) ListMessages(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, before *time.Time, limit int) ([]model.Message, error) {
	if err := s.requireParticipant(ctx, user, conversationID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = constant.DefaultMessagePageSize
	}
	if limit > constant.MaxMessagePageSize {
		limit = constant.MaxMessagePageSize
	}

	messages, err := s.messages.List(ctx, conversationID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

func (s *BackendService) InsertMessage(ctx context.Context, user model.UserDTO, msg model.Message) (*model.Message, error) {
	if msg.SenderID != user.ID {
		return nil, rejected("sender mismatch")
	}
	for _, a := range msg.Attachments {
		if !helper.StoragePathOwnedBy(a.StoragePath, user.ID) {
			return nil, rejected("attachment not owned by sender")
		}
	}
	if err := s.requireParticipant(ctx, user, msg.ConversationID); err != nil {
		return nil, err
	}

	if len(msg.Attachments) > 0 {
		attachments, err := s.recordedAttachments(ctx, user, msg)
		if err != nil {
			return nil, err
		}
		msg.Attachments = attachments
		msg.Type = helper.InferMessageType(attachments)
	}

	msg.Status = ""
	stored, created, err := s.messages.Insert(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if created {
		published := stored.Clone()
		s.publishToConversation(ctx, stored.ConversationID, model.RealtimeEvent{
			Type:           model.RealtimeMessageNew,
			ConversationID: stored.ConversationID,
			UserID:         user.ID,
			Message:        &published,
			At:             stored.CreatedAt,
		})
	}

	return stored, nil
}

// recordedAttachments rebuilds the attachments of msg from the upload ledger
// so that type, size and URL describe the stored object. Only the display
// name and duration are taken from the client.
func (s *BackendService) recordedAttachments(ctx context.Context, user model.UserDTO, msg model.Message) ([]model.Attachment, error) {
	out := make([]model.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		upload, err := s.uploads.GetOwned(ctx, user.ID, a.StoragePath)
		if errors.Is(err, repository.ErrUploadNotFound) {
			return nil, rejected("unknown attachment")
		}
		if err != nil {
			return nil, fmt.Errorf("look up attachment: %w", err)
		}
		if upload.MessageID != nil && *upload.MessageID != msg.ID {
			return nil, rejected("attachment belongs to another message")
		}

		url, err := helper.ObjectURL(ctx, s.urls, upload.StoragePath, upload.IsPrivate, s.presignExpiry)
		if err != nil {
			return nil, fmt.Errorf("attachment url: %w", err)
		}

		att := model.Attachment{
			ID:          a.ID,
			Type:        helper.AttachmentTypeFromMIME(upload.MimeType),
			URL:         url,
			Name:        a.Name,
			Size:        upload.Size,
			MimeType:    upload.MimeType,
			StoragePath: upload.StoragePath,
			DurationMs:  a.DurationMs,
		}
		if att.ID == uuid.Nil {
			att.ID = uuid.New()
		}
		if att.Name == "" {
			att.Name = filepath.Base(upload.StoragePath)
		}
		if att.Type == constant.MessageTypeImage {
			att.PreviewURL = url
		}
		out = append(out, att)
	}
	return out, nil
}

func (s *BackendService) MarkRead(ctx context.Context, user model.UserDTO, conversationID uuid.UUID, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}

	stored, err := s.conversations.AdvanceReadCursor(ctx, conversationID, user.ID, at.UTC())
	if errors.Is(err, repository.ErrNotParticipant) {
		return rejected("not a participant")
	}
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	s.publishToConversation(ctx, conversationID, model.RealtimeEvent{
		Type:           model.RealtimeReadCursor,
		ConversationID: conversationID,
		UserID:         user.ID,
		ReadCursor:     &model.ReadCursor{ConversationID: conversationID, UserID: user.ID, LastReadAt: stored},
		At:             s.now(),
	})
	return nil
}

func (s *BackendService) SendTyping(ctx context.Context, user model.UserDTO, signal model.TypingSignal) error {
	if err := s.requireParticipant(ctx, user, signal.ConversationID); err != nil {
		return err
	}

	signal.UserID = user.ID
	if signal.ExpiresAt.IsZero() {
		signal.ExpiresAt = s.now().Add(constant.TypingExpiry)
	}

	return s.realtime.PublishToConversation(ctx, signal.ConversationID, model.RealtimeEvent{
		Type:           model.RealtimeTyping,
		ConversationID: signal.ConversationID,
		UserID:         user.ID,
		Typing:         &signal,
		At:             s.now(),
	})
}

func (s *BackendService) GetOrCreateConversation(ctx context.Context, user model.UserDTO, req model.CreateConversationRequest) (*model.Conversation, error) {
	if req.CounterpartID == uuid.Nil || req.CounterpartID == user.ID {
		return nil, rejected("invalid counterpart")
	}

	exists, err := s.conversations.ProfileInTenant(ctx, user.TenantID, req.CounterpartID)
	if err != nil {
		return nil, fmt.Errorf("check counterpart: %w", err)
	}
	if !exists {
		return nil, rejected("counterpart not found")
	}

	id, created, err := s.conversations.GetOrCreateDirect(ctx, user.TenantID, user.ID, req.CounterpartID, req.Context, req.Metadata)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversations.GetForUser(ctx, user.ID, id)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	if created {
		announced := conv.Clone()
		announced.UnreadCount = 0
		if err := s.realtime.PublishToUser(ctx, req.CounterpartID, model.RealtimeEvent{
			Type:           model.RealtimeConversationNew,
			ConversationID: conv.ID,
			UserID:         user.ID,
			Conversation:   &announced,
			At:             s.now(),
		}); err != nil {
			slog.Warn("Failed to announce new conversation", "error", err, "conversationID", conv.ID)
		}
	}

	return conv, nil
}

func (s *BackendService) Subscribe(ctx context.Context, user model.UserDTO, conversationIDs []uuid.UUID) (store.Subscription, error) {
	sub, err := s.realtime.Subscribe(ctx, user.ID, conversationIDs)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Publish failures are logged and never fail the write.
func (s *BackendService) publishToConversation(ctx context.Context, conversationID uuid.UUID, event model.RealtimeEvent) {
	if err := s.realtime.PublishToConversation(context.WithoutCancel(ctx), conversationID, event); err != nil {
		slog.Warn("Failed to publish realtime event", "error", err, "type", event.Type, "conversationID", conversationID)
	}
}
