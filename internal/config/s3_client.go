package config

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

func NewS3Client(cfg *AppConfig) *s3.Client {
	region := cfg.S3Region
	if region == "" {
		region = cfg.AWSRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	sdkConfig, err := config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		slog.Error("Failed to load AWS SDK config", "error", err)
		return nil
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return client
}

// NewSSMClient uses the default credential chain; Parameter Store is never
// reached through the S3 endpoint override.
func NewSSMClient(cfg *AppConfig) *ssm.Client {
	sdkConfig, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("Failed to load AWS SDK config", "error", err)
		return nil
	}
	return ssm.NewFromConfig(sdkConfig)
}
