package repository

import (
	"RecruitTalkAPI/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{
		pool: pool,
	}
}

const messageColumns = "id, conversation_id, sender_id, content, type, attachments, created_at"

// List returns up to limit messages older than before (or the newest ones
// when before is nil), in ascending creation order.
func (r *MessageRepository) List(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]model.Message, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if before != nil {
		rows, err = r.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = $1 AND created_at < $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, conversationID, *before, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, conversationID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

func (r *MessageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id)
	if err != nil {
		return nil, err
	}

	msg, err := pgx.CollectExactlyOneRow(rows, scanMessage)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Insert stores msg with a server timestamp. Re-inserting an existing id is a
// no-op that returns the stored copy and created=false. In the same
// transaction it bumps the conversation, advances the sender's read cursor and
// links the attachment uploads to the message.
func (r *MessageRepository) Insert(ctx context.Context, msg model.Message) (*model.Message, bool, error) {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return nil, false, fmt.Errorf("encode attachments: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, attachments)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+messageColumns,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type, raw,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert message: %w", err)
	}

	stored, err := pgx.CollectExactlyOneRow(rows, scanMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.Get(ctx, msg.ID)
		if getErr != nil {
			return nil, false, fmt.Errorf("load existing message: %w", getErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scan inserted message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2), updated_at = now()
		WHERE id = $1
	`, stored.ConversationID, stored.CreatedAt); err != nil {
		return nil, false, fmt.Errorf("update conversation: %w", err)
	}

	if _, err := tx.Exec(ctx, "SELECT advance_read_cursor($1, $2, $3)", stored.ConversationID, stored.SenderID, stored.CreatedAt); err != nil {
		return nil, false, fmt.Errorf("advance sender cursor: %w", err)
	}

	if paths := storagePaths(stored.Attachments); len(paths) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE attachment_uploads SET message_id = $1
			WHERE storage_path = ANY($2) AND owner_id = $3 AND message_id IS NULL
		`, stored.ID, paths, stored.SenderID); err != nil {
			return nil, false, fmt.Errorf("link uploads: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	return &stored, true, nil
}

func storagePaths(attachments []model.Attachment) []string {
	paths := make([]string, 0, len(attachments))
	for _, a := range attachments {
		if a.StoragePath != "" {
			paths = append(paths, a.StoragePath)
		}
	}
	return paths
}

func scanMessage(row pgx.CollectableRow) (model.Message, error) {
	var m model.Message
	var attachments []byte

	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &attachments, &m.CreatedAt); err != nil {
		return m, err
	}

	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return m, fmt.Errorf("decode attachments: %w", err)
		}
	}
	if len(m.Attachments) == 0 {
		m.Attachments = nil
	}
	return m, nil
}
