package service

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/repository"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type AttachmentService struct {
	cfg       *config.AppConfig
	validator *validator.Validate
	storage   objectStorage
	uploads   uploadRepository
}

func NewAttachmentService(cfg *config.AppConfig, validator *validator.Validate, storage objectStorage, uploads uploadRepository) *AttachmentService {
	return &AttachmentService{
		cfg:       cfg,
		validator: validator,
		storage:   storage,
		uploads:   uploads,
	}
}

func (s *AttachmentService) presignExpiry() time.Duration {
	return time.Duration(s.cfg.S3PresignMinutes) * time.Minute
}

// Upload stores one file under the user's prefix and records it so that
// uploads never attached to a message can be cleaned up later.
func (s *AttachmentService) Upload(ctx context.Context, user model.UserDTO, file model.UploadFile) (*model.Attachment, error) {
	if file.Reader == nil {
		return nil, helper.NewBadRequestError("File is required")
	}
	if file.Size > constant.MaxAttachmentSize {
		return nil, helper.NewRequestEntityTooLargeError(fmt.Sprintf("%s is larger than 20 MB", file.Name))
	}

	data, err := io.ReadAll(io.LimitReader(file.Reader, constant.MaxAttachmentSize+1))
	if err != nil {
		slog.Error("Failed to read uploaded file", "error", err, "userID", user.ID)
		return nil, helper.NewInternalServerError("")
	}
	if len(data) > constant.MaxAttachmentSize {
		return nil, helper.NewRequestEntityTooLargeError(fmt.Sprintf("%s is larger than 20 MB", file.Name))
	}

	detected, _, err := helper.DetectContentType(bytes.NewReader(data))
	if err != nil {
		return nil, helper.NewBadRequestError("File is empty")
	}
	mimeType := resolveMIME(file.MimeType, detected)

	name := file.Name
	if filepath.Ext(name) == "" {
		name += helper.ExtensionForMIME(mimeType)
	}
	storagePath := helper.AttachmentStoragePath(user.ID, name)
	private := s.cfg.AttachmentsPrivate

	if err := s.storage.Put(ctx, bytes.NewReader(data), int64(len(data)), mimeType, storagePath, !private); err != nil {
		slog.Error("Failed to store attachment", "error", err, "userID", user.ID, "path", storagePath)
		return nil, helper.NewServiceUnavailableError("Storage is unavailable")
	}

	if err := s.uploads.Record(ctx, repository.Upload{
		StoragePath: storagePath,
		OwnerID:     user.ID,
		Size:        int64(len(data)),
		MimeType:    mimeType,
		IsPrivate:   private,
	}); err != nil {
		slog.Error("Failed to record upload", "error", err, "userID", user.ID, "path", storagePath)
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), storagePath, !private); delErr != nil {
			slog.Warn("Failed to delete unrecorded upload", "error", delErr, "path", storagePath)
		}
		return nil, helper.NewInternalServerError("")
	}

	url, err := helper.ObjectURL(ctx, s.storage, storagePath, private, s.presignExpiry())
	if err != nil {
		slog.Error("Failed to build attachment URL", "error", err, "path", storagePath)
		return nil, helper.NewInternalServerError("")
	}

	attachment := &model.Attachment{
		ID:          uuid.New(),
		Type:        helper.AttachmentTypeFromMIME(mimeType),
		URL:         url,
		Name:        name,
		Size:        int64(len(data)),
		MimeType:    mimeType,
		StoragePath: storagePath,
	}
	if attachment.Type == constant.MessageTypeImage {
		attachment.PreviewURL = url
	}

	return attachment, nil
}

// Remove deletes an upload that has not been sent yet. Objects already
// linked to a message are kept.
func (s *AttachmentService) Remove(ctx context.Context, user model.UserDTO, attachment model.Attachment) error {
	if !helper.StoragePathOwnedBy(attachment.StoragePath, user.ID) {
		return helper.NewForbiddenError("")
	}

	deleted, err := s.uploads.DeleteUnlinked(ctx, user.ID, attachment.StoragePath)
	if err != nil {
		slog.Error("Failed to delete upload record", "error", err, "path", attachment.StoragePath)
		return helper.NewInternalServerError("")
	}
	if !deleted {
		return nil
	}

	if err := s.storage.Delete(ctx, attachment.StoragePath, !s.cfg.AttachmentsPrivate); err != nil {
		slog.Warn("Failed to delete stored attachment", "error", err, "path", attachment.StoragePath)
	}
	return nil
}

// RemoveByPath backs the HTTP endpoint, which only knows the storage path.
func (s *AttachmentService) RemoveByPath(ctx context.Context, user model.UserDTO, req model.RemoveAttachmentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		slog.Warn("Validation failed", "error", err, "userID", user.ID)
		return helper.NewBadRequestError("")
	}
	return s.Remove(ctx, user, model.Attachment{StoragePath: req.StoragePath})
}

// resolveMIME prefers the sniffed type unless sniffing was inconclusive or
// the client declared audio inside a container that sniffs as video.
func resolveMIME(declared, detected string) string {
	declared = strings.TrimSpace(strings.SplitN(declared, ";", 2)[0])
	if declared == "" {
		return detected
	}
	if detected == "" || detected == "application/octet-stream" {
		return declared
	}
	if strings.HasPrefix(declared, "audio/") && (strings.HasPrefix(detected, "video/webm") || strings.HasPrefix(detected, "video/mp4")) {
		return declared
	}
	return detected
}
