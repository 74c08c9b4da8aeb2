package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	AppPort               string   `env:"APP_PORT,required"`
	AppEnv                string   `env:"APP_ENV,required"`
	AppURL                string   `env:"APP_URL" envDefault:"http://localhost:8080"`
	AppCorsAllowedOrigins []string `env:"APP_CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	AppTimezone           string   `env:"APP_TIMEZONE" envDefault:"UTC"`
	AppRequestTimeoutSec  int      `env:"APP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	DBHost     string `env:"DB_HOST,required"`
	DBPort     string `env:"DB_PORT,required"`
	DBUser     string `env:"DB_USER,required"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBName     string `env:"DB_NAME,required"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMigrate  bool   `env:"DB_MIGRATE" envDefault:"false"`
	DBMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// JWTSecretSSMParam, when set, overrides JWTSecret with the decrypted
	// Parameter Store value at startup.
	JWTSecret         string `env:"JWT_SECRET"`
	JWTSecretSSMParam string `env:"JWT_SECRET_SSM_PARAM"`
	JWTExp            int    `env:"JWT_EXP" envDefault:"24"`

	AWSRegion string `env:"AWS_REGION" envDefault:"ap-southeast-1"`

	S3BucketPublic   string `env:"S3_BUCKET_PUBLIC,required"`
	S3BucketPrivate  string `env:"S3_BUCKET_PRIVATE,required"`
	S3Region         string `env:"S3_REGION"`
	S3AccessKey      string `env:"S3_ACCESS_KEY"`
	S3SecretKey      string `env:"S3_SECRET_KEY"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3PublicDomain   string `env:"S3_PUBLIC_DOMAIN"`
	S3PresignMinutes int    `env:"S3_PRESIGN_MINUTES" envDefault:"15"`

	// Attachments go to the private bucket and are served through presigned URLs.
	AttachmentsPrivate bool `env:"ATTACHMENTS_PRIVATE" envDefault:"false"`

	TrustedProxyCIDRs []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`

	SendRateLimit           int `env:"SEND_RATE_LIMIT" envDefault:"30"`
	SendRateWindowSeconds   int `env:"SEND_RATE_WINDOW_SECONDS" envDefault:"60"`
	UploadRateLimit         int `env:"UPLOAD_RATE_LIMIT" envDefault:"20"`
	UploadRateWindowSeconds int `env:"UPLOAD_RATE_WINDOW_SECONDS" envDefault:"60"`

	WSFramesPerSecond float64 `env:"WS_FRAMES_PER_SECOND" envDefault:"20"`
	WSFrameBurst      int     `env:"WS_FRAME_BURST" envDefault:"40"`

	SessionIdleMinutes   int `env:"SESSION_IDLE_MINUTES" envDefault:"10"`
	UploadRetentionHours int `env:"UPLOAD_RETENTION_HOURS" envDefault:"24"`
	PresenceStaleMinutes int `env:"PRESENCE_STALE_MINUTES" envDefault:"15"`

	UploadCleanupCron string `env:"UPLOAD_CLEANUP_CRON" envDefault:"0 3 * * *"`
	PresenceSweepCron string `env:"PRESENCE_SWEEP_CRON" envDefault:"*/5 * * * *"`
}

func LoadAppConfig() *AppConfig {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, reading from system environment variables")
	}

	cfg, err := ParseAppConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

// ParseAppConfig reads the configuration from the process environment.
func ParseAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.JWTSecret == "" && cfg.JWTSecretSSMParam == "" {
		return nil, fmt.Errorf("parse config: one of JWT_SECRET or JWT_SECRET_SSM_PARAM is required")
	}
	return cfg, nil
}

func (c *AppConfig) DBConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}
