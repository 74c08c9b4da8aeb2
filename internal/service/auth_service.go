package service

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"context"
	"log/slog"
)

// AuthService verifies access tokens issued by the platform's identity
// provider. Sign-up and login happen there.
type AuthService struct {
	cfg    *config.AppConfig
	secret string
}

func NewAuthService(cfg *config.AppConfig, secret string) *AuthService {
	return &AuthService{
		cfg:    cfg,
		secret: secret,
	}
}

func (s *AuthService) VerifyUser(ctx context.Context, tokenString string) (*model.UserDTO, error) {
	user, err := helper.ParseJWT(s.secret, tokenString)
	if err != nil {
		slog.Debug("Rejected access token", "error", err)
		return nil, helper.NewUnauthorizedError("Invalid or expired token")
	}
	return user, nil
}

// IssueToken signs a token for user. Used by local tooling and tests.
func (s *AuthService) IssueToken(user model.UserDTO) (string, error) {
	return helper.GenerateJWT(s.secret, s.cfg.JWTExp, user)
}
