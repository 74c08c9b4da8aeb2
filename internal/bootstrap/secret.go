package bootstrap

import (
	"RecruitTalkAPI/internal/adapter"
	"RecruitTalkAPI/internal/config"
	"context"
	"errors"
	"log/slog"
	"time"
)

// ResolveJWTSecret prefers the Parameter Store value when JWT_SECRET_SSM_PARAM
// is set.
func ResolveJWTSecret(cfg *config.AppConfig) (string, error) {
	if cfg.JWTSecretSSMParam == "" {
		return cfg.JWTSecret, nil
	}

	ssmClient := config.NewSSMClient(cfg)
	if ssmClient == nil {
		return "", errors.New("ssm client unavailable")
	}

	paramstore, err := adapter.NewParamstoreAdapter(ssmClient)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	secret, err := paramstore.GetParameter(ctx, cfg.JWTSecretSSMParam)
	if err != nil {
		return "", err
	}

	slog.Info("JWT secret loaded from Parameter Store", "parameter", cfg.JWTSecretSSMParam)
	return secret, nil
}
