package bootstrap

import (
	"RecruitTalkAPI/internal/adapter"
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/controller"
	"RecruitTalkAPI/internal/middleware"
	"RecruitTalkAPI/internal/repository"
	"RecruitTalkAPI/internal/service"
	"RecruitTalkAPI/internal/websocket"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the long-running pieces that need an orderly shutdown.
type App struct {
	hub      *websocket.Hub
	sessions *service.SessionService
	limiter  *config.RateLimiter
}

func (a *App) Shutdown() {
	a.sessions.Close()
	a.hub.Stop()
	a.limiter.Stop()
}

func Init(appConfig *config.AppConfig, pool *pgxpool.Pool, redisAdapter *adapter.RedisAdapter, validator *validator.Validate, s3Client *s3.Client, jwtSecret string, chiMux *chi.Mux) *App {
	repo := repository.NewRepository(pool, redisAdapter)

	storageAdapter := adapter.NewStorageAdapter(appConfig, s3Client)
	realtimeAdapter := adapter.NewRealtimeAdapter(redisAdapter)

	authService := service.NewAuthService(appConfig, jwtSecret)
	presignExpiry := time.Duration(appConfig.S3PresignMinutes) * time.Minute
	backendService := service.NewBackendService(repo.Conversation, repo.Message, repo.Upload, storageAdapter, realtimeAdapter, presignExpiry)
	presenceService := service.NewPresenceService(repo.Presence)
	attachmentService := service.NewAttachmentService(appConfig, validator, storageAdapter, repo.Upload)

	sessionService := service.NewSessionService(appConfig, backendService, repo.Outbox)
	sessionService.Start()

	conversationService := service.NewConversationService(validator, sessionService, presenceService)
	messageService := service.NewMessageService(appConfig, validator, sessionService, presenceService)

	hub := websocket.NewHub(presenceService, repo.Conversation)
	presenceService.SetLiveDirectory(hub)
	go hub.Run()

	limiter := config.NewRateLimiter(appConfig)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(repo.RateLimit, appConfig)

	conversationController := controller.NewConversationController(conversationService)
	messageController := controller.NewMessageController(messageService)
	attachmentController := controller.NewAttachmentController(attachmentService)
	outboxController := controller.NewOutboxController(messageService)
	wsController := controller.NewWebSocketController(hub, sessionService, websocket.ClientDeps{
		Uploader: attachmentService,
		Limiter:  limiter,
		Presence: presenceService,
	}, appConfig.AppCorsAllowedOrigins)

	route := NewRoute(appConfig, chiMux, authMiddleware, rateLimitMiddleware, conversationController, messageController, attachmentController, outboxController, wsController)
	route.Register()

	return &App{
		hub:      hub,
		sessions: sessionService,
		limiter:  limiter,
	}
}
