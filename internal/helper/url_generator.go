package helper

import (
	"context"
	"time"
)

type URLGenerator interface {
	GetPublicURL(path string) string
	GetPresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// ObjectURL returns a permanent URL for public objects and a presigned one
// valid for expiry otherwise.
func ObjectURL(ctx context.Context, gen URLGenerator, path string, private bool, expiry time.Duration) (string, error) {
	if !private {
		return gen.GetPublicURL(path), nil
	}
	return gen.GetPresignedURL(ctx, path, expiry)
}
