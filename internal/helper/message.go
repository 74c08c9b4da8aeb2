package helper

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/model"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var messageTypePriority = []string{
	constant.MessageTypeVideo,
	constant.MessageTypeAudio,
	constant.MessageTypeImage,
	constant.MessageTypeFile,
}

// InferMessageType derives the type of a whole message from its attachments.
func InferMessageType(attachments []model.Attachment) string {
	if len(attachments) == 0 {
		return constant.MessageTypeText
	}

	seen := make(map[string]bool, len(attachments))
	for _, a := range attachments {
		seen[a.Type] = true
	}

	if len(seen) == 1 {
		t := attachments[0].Type
		if t == "" {
			return constant.MessageTypeFile
		}
		return t
	}

	for _, t := range messageTypePriority {
		if seen[t] {
			return t
		}
	}
	return constant.MessageTypeFile
}

// AttachmentTypeFromMIME maps a MIME type onto an attachment type.
func AttachmentTypeFromMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return constant.MessageTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return constant.MessageTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return constant.MessageTypeAudio
	default:
		return constant.MessageTypeFile
	}
}

// ComputeReceipt returns the sender-facing receipt state of msg. Messages not
// authored by the viewer have none.
func ComputeReceipt(msg model.Message, viewerID uuid.UUID, participants []model.Participant) string {
	if msg.SenderID != viewerID {
		return ""
	}

	switch msg.Status {
	case constant.MessageStatusSending, constant.MessageStatusFailed:
		return msg.Status
	}

	others, read := 0, 0
	for _, p := range participants {
		if p.UserID == msg.SenderID {
			continue
		}
		others++
		if p.LastReadAt != nil && !p.LastReadAt.Before(msg.CreatedAt) {
			read++
		}
	}

	switch {
	case read == 0:
		return constant.ReceiptDelivered
	case read == others:
		return constant.ReceiptRead
	default:
		return constant.ReceiptReadBySome
	}
}

// SortMessages orders messages by creation time, keeping the input order for
// equal timestamps.
func SortMessages(messages []model.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

// BuildTimeline divides messages by calendar day in loc and groups consecutive
// messages of one sender that are less than MessageGroupWindow apart.
func BuildTimeline(messages []model.Message, viewerID uuid.UUID, participants []model.Participant, loc *time.Location, now time.Time) []model.TimelineDay {
	if loc == nil {
		loc = time.UTC
	}

	sorted := make([]model.Message, len(messages))
	copy(sorted, messages)
	SortMessages(sorted)

	var days []model.TimelineDay
	var prev *model.Message

	for i := range sorted {
		msg := sorted[i]
		local := msg.CreatedAt.In(loc)
		dateKey := local.Format("2006-01-02")

		if len(days) == 0 || days[len(days)-1].Date != dateKey {
			days = append(days, model.TimelineDay{
				Date:  dateKey,
				Label: DayLabel(local, now.In(loc)),
			})
			prev = nil
		}
		day := &days[len(days)-1]

		entry := model.TimelineMessage{
			Message: msg,
			Receipt: ComputeReceipt(msg, viewerID, participants),
		}

		if prev != nil && prev.SenderID == msg.SenderID && msg.CreatedAt.Sub(prev.CreatedAt) < constant.MessageGroupWindow {
			group := &day.Groups[len(day.Groups)-1]
			group.Messages = append(group.Messages, entry)
		} else {
			day.Groups = append(day.Groups, model.MessageGroup{
				SenderID: msg.SenderID,
				IsMine:   msg.SenderID == viewerID,
				Messages: []model.TimelineMessage{entry},
			})
		}
		prev = &sorted[i]
	}

	return days
}

func DayLabel(day, now time.Time) string {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.Date()
	dayStart := time.Date(y1, m1, d1, 0, 0, 0, 0, day.Location())
	todayStart := time.Date(y2, m2, d2, 0, 0, 0, 0, now.Location())

	switch {
	case dayStart.Equal(todayStart):
		return "Today"
	case dayStart.Equal(todayStart.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("Mon, 02 Jan 2006")
	}
}

// MessagePreview is the single-line text shown in the chat list.
func MessagePreview(msg *model.Message) string {
	if msg == nil {
		return ""
	}
	if content := strings.TrimSpace(msg.Content); content != "" {
		return content
	}
	switch msg.Type {
	case constant.MessageTypeImage:
		return "Photo"
	case constant.MessageTypeVideo:
		return "Video"
	case constant.MessageTypeAudio:
		return "Voice message"
	case constant.MessageTypeFile:
		return "File"
	}
	return ""
}
