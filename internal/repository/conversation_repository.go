package repository

import (
	"RecruitTalkAPI/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotParticipant = errors.New("user is not a participant of the conversation")

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{
		pool: pool,
	}
}

const conversationColumns = `
	c.id, c.tenant_id, c.title, c.name, c.is_group, c.avatar_url, c.metadata,
	c.last_message_at, c.created_at, c.updated_at,
	(
		SELECT COUNT(*) FROM messages m
		WHERE m.conversation_id = c.id
		  AND m.sender_id <> cp.user_id
		  AND m.created_at > COALESCE(cp.last_read_at, '-infinity'::timestamptz)
	) AS unread_count`

// ListForUser returns every conversation userID participates in within the
// tenant, with participants, unread counts and the latest message filled in.
func (r *ConversationRepository) ListForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]model.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id = $2
		WHERE c.tenant_id = $1
		ORDER BY COALESCE(c.last_message_at, c.updated_at) DESC, c.id
	`, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}

	conversations, err := pgx.CollectRows(rows, scanConversation)
	if err != nil {
		return nil, fmt.Errorf("scan conversations: %w", err)
	}

	if err := r.hydrate(ctx, conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// GetForUser loads a single conversation as seen by userID. It returns
// ErrNotParticipant when the user is not a member.
func (r *ConversationRepository) GetForUser(ctx context.Context, userID, conversationID uuid.UUID) (*model.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id = $1
		WHERE c.id = $2
	`, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	conversations, err := pgx.CollectRows(rows, scanConversation)
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if len(conversations) == 0 {
		return nil, ErrNotParticipant
	}

	if err := r.hydrate(ctx, conversations); err != nil {
		return nil, err
	}
	return &conversations[0], nil
}

func (r *ConversationRepository) hydrate(ctx context.Context, conversations []model.Conversation) error {
	if len(conversations) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(conversations))
	index := make(map[uuid.UUID]int, len(conversations))
	for i, c := range conversations {
		ids[i] = c.ID
		index[c.ID] = i
	}

	participants, err := r.participants(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range participants {
		i := index[p.ConversationID]
		conversations[i].Participants = append(conversations[i].Participants, p)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (conversation_id)
			id, conversation_id, sender_id, content, type, attachments, created_at
		FROM messages
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, created_at DESC, id DESC
	`, ids)
	if err != nil {
		return fmt.Errorf("query last messages: %w", err)
	}

	lastMessages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return fmt.Errorf("scan last messages: %w", err)
	}
	for _, m := range lastMessages {
		msg := m
		conversations[index[m.ConversationID]].LastMessage = &msg
	}

	return nil
}

func (r *ConversationRepository) participants(ctx context.Context, conversationIDs []uuid.UUID) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cp.conversation_id, cp.user_id,
			COALESCE(p.email, ''), COALESCE(p.display_name, ''), COALESCE(p.avatar_url, ''),
			COALESCE(p.role, cp.role), cp.last_read_at, cp.joined_at
		FROM conversation_participants cp
		LEFT JOIN profiles p ON p.id = cp.user_id
		WHERE cp.conversation_id = ANY($1)
		ORDER BY cp.conversation_id, cp.joined_at, cp.user_id
	`, conversationIDs)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}

	participants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Participant, error) {
		var p model.Participant
		err := row.Scan(&p.ConversationID, &p.UserID, &p.Email, &p.DisplayName, &p.AvatarURL, &p.Role, &p.LastReadAt, &p.JoinedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan participants: %w", err)
	}
	return participants, nil
}

// GetOrCreateDirect resolves the direct conversation between userID and
// otherID for an entry point, creating it when missing.
func (r *ConversationRepository) GetOrCreateDirect(ctx context.Context, tenantID, userID, otherID uuid.UUID, entryContext string, metadata map[string]any) (uuid.UUID, bool, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("encode metadata: %w", err)
	}

	var id uuid.UUID
	var created bool
	err = r.pool.QueryRow(ctx,
		"SELECT out_id, out_created FROM get_or_create_direct_conversation($1, $2, $3, $4, $5::jsonb)",
		tenantID, userID, otherID, entryContext, raw,
	).Scan(&id, &created)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("get or create direct conversation: %w", err)
	}
	return id, created, nil
}

func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&ok)
	return ok, err
}

func (r *ConversationRepository) ParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT user_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY user_id",
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// ContactIDs returns everyone sharing at least one conversation with userID.
func (r *ConversationRepository) ContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT other.user_id
		FROM conversation_participants mine
		JOIN conversation_participants other
		  ON other.conversation_id = mine.conversation_id AND other.user_id <> mine.user_id
		WHERE mine.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// AdvanceReadCursor moves the participant's cursor forward and returns the
// stored value, which never goes backwards.
func (r *ConversationRepository) AdvanceReadCursor(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (time.Time, error) {
	var stored *time.Time
	err := r.pool.QueryRow(ctx, "SELECT advance_read_cursor($1, $2, $3)", conversationID, userID, at).Scan(&stored)
	if err != nil {
		return time.Time{}, fmt.Errorf("advance read cursor: %w", err)
	}
	if stored == nil {
		return time.Time{}, ErrNotParticipant
	}
	return *stored, nil
}

// ProfileInTenant reports whether the profile exists within the tenant.
func (r *ConversationRepository) ProfileInTenant(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1 AND tenant_id = $2)",
		userID, tenantID,
	).Scan(&ok)
	return ok, err
}

func scanConversation(row pgx.CollectableRow) (model.Conversation, error) {
	var c model.Conversation
	var metadata []byte
	var unread int64

	err := row.Scan(
		&c.ID, &c.TenantID, &c.Title, &c.Name, &c.IsGroup, &c.AvatarURL, &metadata,
		&c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt, &unread,
	)
	if err != nil {
		return c, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return c, fmt.Errorf("decode metadata: %w", err)
		}
	}
	c.UnreadCount = int(unread)
	return c, nil
}
