package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUploadNotFound = errors.New("upload not found")

type Upload struct {
	StoragePath string
	OwnerID     uuid.UUID
	MessageID   *uuid.UUID
	Size        int64
	MimeType    string
	IsPrivate   bool
	CreatedAt   time.Time
}

type UploadRepository struct {
	pool *pgxpool.Pool
}

func NewUploadRepository(pool *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{
		pool: pool,
	}
}

func (r *UploadRepository) Record(ctx context.Context, upload Upload) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attachment_uploads (storage_path, owner_id, size, mime_type, is_private)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (storage_path) DO NOTHING
	`, upload.StoragePath, upload.OwnerID, upload.Size, upload.MimeType, upload.IsPrivate)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// GetOwned returns the upload at storagePath when ownerID recorded it, or
// ErrUploadNotFound.
func (r *UploadRepository) GetOwned(ctx context.Context, ownerID uuid.UUID, storagePath string) (*Upload, error) {
	var u Upload
	err := r.pool.QueryRow(ctx, `
		SELECT storage_path, owner_id, message_id, size, mime_type, is_private, created_at
		FROM attachment_uploads
		WHERE storage_path = $1 AND owner_id = $2
	`, storagePath, ownerID).Scan(&u.StoragePath, &u.OwnerID, &u.MessageID, &u.Size, &u.MimeType, &u.IsPrivate, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return &u, nil
}

// DeleteUnlinked removes an upload that no message references yet. It
// reports whether a row was removed.
func (r *UploadRepository) DeleteUnlinked(ctx context.Context, ownerID uuid.UUID, storagePath string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM attachment_uploads
		WHERE storage_path = $1 AND owner_id = $2 AND message_id IS NULL
	`, storagePath, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete upload: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListOrphans returns uploads never linked to a message and created before cutoff.
func (r *UploadRepository) ListOrphans(ctx context.Context, cutoff time.Time, limit int) ([]Upload, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT storage_path, owner_id, size, mime_type, is_private, created_at
		FROM attachment_uploads
		WHERE message_id IS NULL AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query orphan uploads: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Upload, error) {
		var u Upload
		err := row.Scan(&u.StoragePath, &u.OwnerID, &u.Size, &u.MimeType, &u.IsPrivate, &u.CreatedAt)
		return u, err
	})
}

func (r *UploadRepository) Delete(ctx context.Context, storagePath string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM attachment_uploads WHERE storage_path = $1 AND message_id IS NULL", storagePath)
	return err
}
