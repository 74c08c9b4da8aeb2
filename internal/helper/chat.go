package helper

import (
	"RecruitTalkAPI/internal/model"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatListEntry is one display row of the chat list. Several raw conversations
// that point at the same counterpart collapse into a single entry.
type ChatListEntry struct {
	Identity        string
	Primary         model.Conversation
	ConversationIDs []uuid.UUID
	UnreadCount     int
	LastMessage     *model.Message
	LastActivityAt  time.Time
	DisplayName     string
}

type identitySource struct {
	namespace string
	extract   func(c model.Conversation, viewerID uuid.UUID) string
}

// Evaluated in order; the first non-empty identity wins.
var counterpartIdentitySources = []identitySource{
	{namespace: "principal", extract: counterpartUserID},
	{namespace: "principal", extract: metadataIdentity},
	{namespace: "email", extract: counterpartEmail},
	{namespace: "conversation", extract: conversationOwnID},
}

var metadataIdentityKeys = []string{
	"counterpart_id", "counterpartId",
	"other_user_id", "otherUserId",
	"recipient_id", "recipientId",
	"student_profile_id", "studentProfileId",
	"student_id", "studentId",
	"agent_id", "agentId",
	"university_id", "universityId",
	"partner_id", "partnerId",
	"profile_id", "profileId",
	"user_id", "userId",
}

var metadataNameKeys = []string{
	"counterpart_name", "counterpartName",
	"display_name", "displayName",
	"full_name", "fullName",
	"student_name", "studentName",
	"name",
}

// ConversationIdentity returns the key used to merge raw conversations. Group
// conversations are never merged; direct ones resolve to the counterpart.
func ConversationIdentity(c model.Conversation, viewerID uuid.UUID) string {
	if c.IsGroup {
		return "group:" + c.ID.String()
	}

	for _, source := range counterpartIdentitySources {
		if id := source.extract(c, viewerID); id != "" {
			return source.namespace + ":" + id
		}
	}

	return "conversation:" + c.ID.String()
}

// Counterpart returns the first participant that is not the viewer.
func Counterpart(c model.Conversation, viewerID uuid.UUID) *model.Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID != viewerID {
			return &c.Participants[i]
		}
	}
	return nil
}

// Counterparts returns every participant except the viewer.
func Counterparts(c model.Conversation, viewerID uuid.UUID) []model.Participant {
	out := make([]model.Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.UserID != viewerID {
			out = append(out, p)
		}
	}
	return out
}

func counterpartUserID(c model.Conversation, viewerID uuid.UUID) string {
	p := Counterpart(c, viewerID)
	if p == nil || p.UserID == uuid.Nil {
		return ""
	}
	return p.UserID.String()
}

func counterpartEmail(c model.Conversation, viewerID uuid.UUID) string {
	p := Counterpart(c, viewerID)
	if p == nil {
		return ""
	}
	return IdentityEmail(p.Email)
}

func conversationOwnID(c model.Conversation, _ uuid.UUID) string {
	if c.ID == uuid.Nil {
		return ""
	}
	return c.ID.String()
}

func metadataIdentity(c model.Conversation, viewerID uuid.UUID) string {
	viewer := viewerID.String()
	accept := func(v string) bool { return v != "" && v != viewer }

	if id := lookupMetadata(c.Metadata, metadataIdentityKeys, accept); id != "" {
		return id
	}

	for _, key := range sortedKeys(c.Metadata) {
		nested, ok := c.Metadata[key].(map[string]any)
		if !ok {
			continue
		}
		if id := lookupMetadata(nested, append(metadataIdentityKeys, "id"), accept); id != "" {
			return id
		}
	}

	return ""
}

// MetadataName extracts a display name stored in conversation metadata.
func MetadataName(metadata map[string]any) string {
	accept := func(v string) bool { return v != "" }

	if name := lookupMetadataRaw(metadata, metadataNameKeys, accept); name != "" {
		return name
	}

	for _, key := range sortedKeys(metadata) {
		nested, ok := metadata[key].(map[string]any)
		if !ok {
			continue
		}
		if name := lookupMetadataRaw(nested, metadataNameKeys, accept); name != "" {
			return name
		}
	}

	return ""
}

func lookupMetadata(m map[string]any, keys []string, accept func(string) bool) string {
	for _, key := range keys {
		v := strings.ToLower(identityValue(m[key]))
		if accept(v) {
			return v
		}
	}
	return ""
}

func lookupMetadataRaw(m map[string]any, keys []string, accept func(string) bool) string {
	for _, key := range keys {
		v := identityValue(m[key])
		if accept(v) {
			return v
		}
	}
	return ""
}

func identityValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case uuid.UUID:
		if val == uuid.Nil {
			return ""
		}
		return val.String()
	default:
		return ""
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConversationRecency is the greatest of the last message time,
// last_message_at and updated_at.
func ConversationRecency(c model.Conversation) time.Time {
	var latest time.Time
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(latest) {
		latest = c.LastMessage.CreatedAt
	}
	if c.LastMessageAt != nil && c.LastMessageAt.After(latest) {
		latest = *c.LastMessageAt
	}
	if c.UpdatedAt.After(latest) {
		latest = c.UpdatedAt
	}
	return latest
}

func ConversationDisplayName(c model.Conversation, viewerID uuid.UUID) string {
	if c.IsGroup {
		return firstNonEmpty(c.Title, c.Name, "Group chat")
	}

	var displayName, email string
	if p := Counterpart(c, viewerID); p != nil {
		displayName = p.DisplayName
		email = p.Email
	}

	return firstNonEmpty(displayName, MetadataName(c.Metadata), c.Title, c.Name, email, "Unknown")
}

// AggregateConversations merges conversations sharing a counterpart identity
// and orders the result by recency, newest first.
func AggregateConversations(conversations []model.Conversation, viewerID uuid.UUID) []ChatListEntry {
	var order []string
	groups := make(map[string][]model.Conversation)

	for _, c := range conversations {
		identity := ConversationIdentity(c, viewerID)
		if _, ok := groups[identity]; !ok {
			order = append(order, identity)
		}
		groups[identity] = append(groups[identity], c)
	}

	entries := make([]ChatListEntry, 0, len(order))
	for _, identity := range order {
		members := groups[identity]

		primary := members[0]
		primaryAt := ConversationRecency(primary)
		unread := 0
		var lastMessage *model.Message

		for _, c := range members {
			unread += c.UnreadCount

			if at := ConversationRecency(c); at.After(primaryAt) {
				primary, primaryAt = c, at
			}

			if c.LastMessage != nil && (lastMessage == nil || c.LastMessage.CreatedAt.After(lastMessage.CreatedAt)) {
				m := c.LastMessage.Clone()
				lastMessage = &m
			}
		}

		ids := make([]uuid.UUID, 0, len(members))
		ids = append(ids, primary.ID)
		for _, c := range members {
			if c.ID != primary.ID {
				ids = append(ids, c.ID)
			}
		}

		entries = append(entries, ChatListEntry{
			Identity:        identity,
			Primary:         primary.Clone(),
			ConversationIDs: ids,
			UnreadCount:     unread,
			LastMessage:     lastMessage,
			LastActivityAt:  primaryAt,
			DisplayName:     ConversationDisplayName(primary, viewerID),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].LastActivityAt.Equal(entries[j].LastActivityAt) {
			return entries[i].LastActivityAt.After(entries[j].LastActivityAt)
		}
		return entries[i].Identity < entries[j].Identity
	})

	return entries
}

// FilterChatList keeps entries whose title, name, metadata name or counterpart
// name contains query, ignoring case.
func FilterChatList(entries []ChatListEntry, query string, viewerID uuid.UUID) []ChatListEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}

	out := make([]ChatListEntry, 0, len(entries))
	for _, e := range entries {
		candidates := []string{e.Primary.Title, e.Primary.Name, MetadataName(e.Primary.Metadata), e.DisplayName}
		if p := Counterpart(e.Primary, viewerID); p != nil {
			candidates = append(candidates, p.DisplayName)
		}

		for _, c := range candidates {
			if c != "" && strings.Contains(strings.ToLower(c), q) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
