package model

import (
	"io"

	"github.com/google/uuid"
)

type Attachment struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	Type        string    `json:"type" validate:"required,oneof=image video audio file"`
	URL         string    `json:"url" validate:"required,url"`
	PreviewURL  string    `json:"preview_url,omitempty" validate:"omitempty,url"`
	Name        string    `json:"name" validate:"max=255"`
	Size        int64     `json:"size" validate:"gte=0"`
	MimeType    string    `json:"mime_type" validate:"max=100"`
	StoragePath string    `json:"storage_path" validate:"required,max=512"`
	DurationMs  int64     `json:"duration_ms,omitempty" validate:"gte=0"`
}

// UploadFile is a file handed to the attachment pipeline before it reaches storage.
type UploadFile struct {
	Name     string
	Size     int64
	MimeType string
	Reader   io.Reader
}

type RemoveAttachmentRequest struct {
	StoragePath string `json:"storage_path" validate:"required,max=512"`
}
