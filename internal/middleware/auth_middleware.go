package middleware

import (
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"context"
	"net/http"
	"strings"
)

type contextKey string

const UserContextKey contextKey = "userContext"

// TokenVerifier resolves a bearer token into the calling user.
type TokenVerifier interface {
	VerifyUser(ctx context.Context, token string) (*model.UserDTO, error)
}

type AuthMiddleware struct {
	authService TokenVerifier
}

func NewAuthMiddleware(authService TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

func (m *AuthMiddleware) VerifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			helper.WriteError(w, helper.NewUnauthorizedError(""))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			helper.WriteError(w, helper.NewUnauthorizedError(""))
			return
		}

		m.authenticate(w, r, next, parts[1])
	})
}

// VerifyWSToken reads the token from the query string; browsers cannot set
// headers on a websocket handshake.
func (m *AuthMiddleware) VerifyWSToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			helper.WriteError(w, helper.NewUnauthorizedError(""))
			return
		}

		m.authenticate(w, r, next, tokenString)
	})
}

func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request, next http.Handler, token string) {
	userContext, err := m.authService.VerifyUser(r.Context(), token)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	ctx := context.WithValue(r.Context(), UserContextKey, userContext)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// UserFromContext returns the authenticated user, or nil outside an
// authenticated route.
func UserFromContext(ctx context.Context) *model.UserDTO {
	user, _ := ctx.Value(UserContextKey).(*model.UserDTO)
	return user
}
