package store

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/model"
	"sort"
	"time"

	"github.com/google/uuid"
)

func isProvisional(m model.Message) bool {
	return m.Status == constant.MessageStatusSending || m.Status == constant.MessageStatusFailed
}

// MergeMessages combines two message lists, keeping one copy per id. A
// durable copy replaces a provisional one and is never replaced by it. The
// result is ordered by creation time; equal timestamps keep first-seen order.
func MergeMessages(existing, incoming []model.Message) []model.Message {
	index := make(map[uuid.UUID]int, len(existing)+len(incoming))
	out := make([]model.Message, 0, len(existing)+len(incoming))

	add := func(m model.Message) {
		i, ok := index[m.ID]
		if !ok {
			index[m.ID] = len(out)
			out = append(out, m.Clone())
			return
		}
		if isProvisional(m) && !isProvisional(out[i]) {
			return
		}
		out[i] = m.Clone()
	}

	for _, m := range existing {
		add(m)
	}
	for _, m := range incoming {
		add(m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RemoveMessage drops the message with id from messages.
func RemoveMessage(messages []model.Message, id uuid.UUID) []model.Message {
	out := messages[:0:0]
	for _, m := range messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// ApplyMessage updates the conversation summary for msg. known reports
// whether the message had been seen before, in which case the unread count
// is left alone.
func ApplyMessage(conv *model.Conversation, msg model.Message, viewerID uuid.UUID, known bool) {
	if conv.LastMessage == nil || conv.LastMessage.ID == msg.ID || !msg.CreatedAt.Before(conv.LastMessage.CreatedAt) {
		m := msg.Clone()
		conv.LastMessage = &m
	}

	if conv.LastMessageAt == nil || msg.CreatedAt.After(*conv.LastMessageAt) {
		at := msg.CreatedAt
		conv.LastMessageAt = &at
	}
	if msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
	}

	if !known && msg.SenderID != viewerID {
		conv.UnreadCount++
	}
}

// Summary is the part of a conversation that ApplyMessage rewrites.
type Summary struct {
	LastMessage   *model.Message
	LastMessageAt *time.Time
	UpdatedAt     time.Time
}

func SummaryOf(conv *model.Conversation) Summary {
	out := Summary{UpdatedAt: conv.UpdatedAt}
	if conv.LastMessage != nil {
		m := conv.LastMessage.Clone()
		out.LastMessage = &m
	}
	if conv.LastMessageAt != nil {
		at := *conv.LastMessageAt
		out.LastMessageAt = &at
	}
	return out
}

// RetractMessage undoes the summary effect of a provisional message that was
// dropped. prior is the summary captured before msg was applied, nil when
// unknown. held are the messages still held for the conversation, in
// creation order.
func RetractMessage(conv *model.Conversation, msg model.Message, prior *Summary, held []model.Message) {
	if conv.LastMessage == nil || conv.LastMessage.ID != msg.ID {
		return
	}

	var base Summary
	if prior != nil {
		base = *prior
	} else if conv.LastMessageAt != nil && !conv.LastMessageAt.Equal(msg.CreatedAt) {
		at := *conv.LastMessageAt
		base.LastMessageAt = &at
	}

	conv.LastMessage = nil
	if base.LastMessage != nil && base.LastMessage.ID != msg.ID {
		m := base.LastMessage.Clone()
		conv.LastMessage = &m
	}
	if n := len(held); n > 0 {
		newest := held[n-1]
		if conv.LastMessage == nil || !newest.CreatedAt.Before(conv.LastMessage.CreatedAt) {
			m := newest.Clone()
			conv.LastMessage = &m
		}
	}

	conv.LastMessageAt = nil
	if base.LastMessageAt != nil {
		at := *base.LastMessageAt
		conv.LastMessageAt = &at
	}
	if conv.LastMessage != nil && (conv.LastMessageAt == nil || conv.LastMessage.CreatedAt.After(*conv.LastMessageAt)) {
		at := conv.LastMessage.CreatedAt
		conv.LastMessageAt = &at
	}

	if prior != nil && conv.UpdatedAt.Equal(msg.CreatedAt) {
		conv.UpdatedAt = prior.UpdatedAt
		if conv.LastMessageAt != nil && conv.LastMessageAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = *conv.LastMessageAt
		}
	}
}

// ApplyReadCursor records a participant's cursor. The latest write wins even
// when it moves the cursor backwards.
func ApplyReadCursor(conv *model.Conversation, cursor model.ReadCursor, viewerID uuid.UUID) {
	for i := range conv.Participants {
		if conv.Participants[i].UserID == cursor.UserID {
			at := cursor.LastReadAt
			conv.Participants[i].LastReadAt = &at
			break
		}
	}

	if cursor.UserID == viewerID {
		conv.UnreadCount = 0
	}
}
