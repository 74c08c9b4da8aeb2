package config

import (
	"RecruitTalkAPI/internal/helper"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	slogchi "github.com/samber/slog-chi"
)

const healthPath = "/healthz"

// NewChi builds the gateway router. Client addresses are resolved by the
// rate limiter against the trusted proxy list, so RemoteAddr is left as is.
func NewChi(cfg *AppConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(slogchi.NewWithConfig(slog.Default(), slogchi.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
		Filters:          []slogchi.Filter{slogchi.IgnorePath(healthPath)},
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat(healthPath))
	r.Use(exceptUpgrades(middleware.Timeout(requestTimeout(cfg))))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AppCorsAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		helper.WriteError(w, helper.NewNotFoundError("No chat endpoint at "+r.URL.Path))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		helper.WriteError(w, helper.NewMethodNotAllowedError(r.Method+" is not supported on "+r.URL.Path))
	})

	return r
}

func requestTimeout(cfg *AppConfig) time.Duration {
	if cfg.AppRequestTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.AppRequestTimeoutSec) * time.Second
}

// exceptUpgrades applies mw to plain requests only. Websocket sessions run
// for the life of the connection and must not inherit a request deadline.
func exceptUpgrades(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
