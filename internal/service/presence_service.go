package service

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type PresenceService struct {
	presence presenceRepository
	live     LiveDirectory
	now      func() time.Time
}

func NewPresenceService(presence presenceRepository) *PresenceService {
	return &PresenceService{
		presence: presence,
		now:      time.Now,
	}
}

// SetLiveDirectory wires the websocket hub after both have been built.
func (s *PresenceService) SetLiveDirectory(live LiveDirectory) {
	s.live = live
}

func (s *PresenceService) MarkOnline(ctx context.Context, userID uuid.UUID) error {
	return s.presence.SetStatus(ctx, userID, constant.PresenceOnline, s.now())
}

func (s *PresenceService) MarkAway(ctx context.Context, userID uuid.UUID) error {
	return s.presence.SetStatus(ctx, userID, constant.PresenceAway, s.now())
}

func (s *PresenceService) MarkOffline(ctx context.Context, userID uuid.UUID) error {
	return s.presence.SetStatus(ctx, userID, constant.PresenceOffline, s.now())
}

// Labels resolves the presence label of each conversation for viewerID in
// one round trip. Storage errors degrade to live data only.
func (s *PresenceService) Labels(ctx context.Context, conversations []model.Conversation, viewerID uuid.UUID) map[uuid.UUID]model.PresenceLabel {
	seen := make(map[uuid.UUID]bool)
	var userIDs []uuid.UUID
	counterparts := make(map[uuid.UUID][]uuid.UUID, len(conversations))

	for _, c := range conversations {
		for _, p := range helper.Counterparts(c, viewerID) {
			counterparts[c.ID] = append(counterparts[c.ID], p.UserID)
			if !seen[p.UserID] {
				seen[p.UserID] = true
				userIDs = append(userIDs, p.UserID)
			}
		}
	}

	records, err := s.presence.Get(ctx, userIDs)
	if err != nil {
		slog.Warn("Failed to load presence records", "error", err)
		records = nil
	}

	var live map[uuid.UUID]bool
	if s.live != nil {
		live = s.live.OnlineUsers(userIDs)
	}

	now := s.now()
	out := make(map[uuid.UUID]model.PresenceLabel, len(conversations))
	for _, c := range conversations {
		out[c.ID] = helper.ResolvePresence(helper.PresenceInput{
			IsGroup:      c.IsGroup,
			Counterparts: counterparts[c.ID],
			LiveOnline:   live,
			Records:      records,
			Now:          now,
		})
	}
	return out
}

func (s *PresenceService) Label(ctx context.Context, conversation model.Conversation, viewerID uuid.UUID) model.PresenceLabel {
	return s.Labels(ctx, []model.Conversation{conversation}, viewerID)[conversation.ID]
}
