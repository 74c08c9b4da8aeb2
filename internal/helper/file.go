package helper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

func GenerateUniqueFileName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))

	return fmt.Sprintf("%d-%s%s", time.Now().UTC().UnixNano(), uuid.New().String(), ext)
}

// AttachmentStoragePath places an upload under the owner's prefix.
func AttachmentStoragePath(userID uuid.UUID, originalName string) string {
	return path.Join("attachments", userID.String(), GenerateUniqueFileName(originalName))
}

// StoragePathOwnedBy reports whether storagePath lives under the user's prefix.
func StoragePathOwnedBy(storagePath string, userID uuid.UUID) bool {
	clean := path.Clean("/" + storagePath)
	return strings.HasPrefix(clean, "/attachments/"+userID.String()+"/")
}

// DetectContentType sniffs the leading bytes of r and returns the MIME type
// together with a reader that replays them.
func DetectContentType(r io.Reader) (string, io.Reader, error) {
	header := make([]byte, 3072)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	if n == 0 {
		return "", nil, errors.New("empty file")
	}
	header = header[:n]

	mt := mimetype.Detect(header)

	return mt.String(), io.MultiReader(bytes.NewReader(header), r), nil
}

// ExtensionForMIME returns a file extension (with dot) for mimeType.
func ExtensionForMIME(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	if mt := mimetype.Lookup(base); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ".bin"
}
