package adapter

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/helper"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var errS3NotInitialized = errors.New("s3 client is not initialized")

type StorageAdapter struct {
	client        *s3.Client
	bucketPublic  string
	bucketPrivate string
	region        string
	publicDomain  string
	presignClient *s3.PresignClient
}

func NewStorageAdapter(cfg *config.AppConfig, s3Client *s3.Client) *StorageAdapter {
	var presignClient *s3.PresignClient
	if s3Client != nil {
		presignClient = s3.NewPresignClient(s3Client)
	}

	region := cfg.S3Region
	if region == "" {
		region = cfg.AWSRegion
	}

	return &StorageAdapter{
		client:        s3Client,
		bucketPublic:  cfg.S3BucketPublic,
		bucketPrivate: cfg.S3BucketPrivate,
		region:        region,
		publicDomain:  cfg.S3PublicDomain,
		presignClient: presignClient,
	}
}

func (s *StorageAdapter) bucket(isPublic bool) string {
	if isPublic {
		return s.bucketPublic
	}
	return s.bucketPrivate
}

func (s *StorageAdapter) Put(ctx context.Context, reader io.Reader, size int64, contentType string, path string, isPublic bool) error {
	if s.client == nil {
		return errS3NotInitialized
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket(isPublic)),
		Key:         aws.String(filepath.ToSlash(path)),
		Body:        reader,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", path, err)
	}
	return nil
}

func (s *StorageAdapter) Delete(ctx context.Context, path string, isPublic bool) error {
	if s.client == nil {
		return errS3NotInitialized
	}

	_, err := helper.RetryWithBackoffContext(ctx, func() (*s3.DeleteObjectOutput, bool, error) {
		out, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket(isPublic)),
			Key:    aws.String(filepath.ToSlash(path)),
		})
		return out, err != nil && ctx.Err() == nil, err
	}, 2, 200*time.Millisecond)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", path, err)
	}
	return nil
}

func (s *StorageAdapter) GetPublicURL(path string) string {
	if s.publicDomain != "" {
		return fmt.Sprintf("%s/%s", s.publicDomain, filepath.ToSlash(path))
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketPublic, s.region, filepath.ToSlash(path))
}

func (s *StorageAdapter) GetPresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	if s.presignClient == nil {
		return "", errors.New("presign client is not initialized")
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketPrivate),
		Key:    aws.String(filepath.ToSlash(path)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
