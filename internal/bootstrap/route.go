package bootstrap

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/controller"
	"RecruitTalkAPI/internal/middleware"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type Route struct {
	cfg                    *config.AppConfig
	chi                    *chi.Mux
	authMiddleware         *middleware.AuthMiddleware
	rateLimitMiddleware    *middleware.RateLimitMiddleware
	conversationController *controller.ConversationController
	messageController      *controller.MessageController
	attachmentController   *controller.AttachmentController
	outboxController       *controller.OutboxController
	wsController           *controller.WebSocketController
}

func NewRoute(
	cfg *config.AppConfig,
	chi *chi.Mux,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	conversationController *controller.ConversationController,
	messageController *controller.MessageController,
	attachmentController *controller.AttachmentController,
	outboxController *controller.OutboxController,
	wsController *controller.WebSocketController,
) *Route {
	return &Route{
		cfg:                    cfg,
		chi:                    chi,
		authMiddleware:         authMiddleware,
		rateLimitMiddleware:    rateLimitMiddleware,
		conversationController: conversationController,
		messageController:      messageController,
		attachmentController:   attachmentController,
		outboxController:       outboxController,
		wsController:           wsController,
	}
}

func (route *Route) Register() {
	route.chi.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Welcome to RecruitTalkAPI"))
	})

	route.chi.With(route.authMiddleware.VerifyWSToken).Get("/ws", route.wsController.ServeWS)

	sendLimit := route.rateLimitMiddleware.Limit("send", route.cfg.SendRateLimit, time.Duration(route.cfg.SendRateWindowSeconds)*time.Second)
	uploadLimit := route.rateLimitMiddleware.Limit("upload", route.cfg.UploadRateLimit, time.Duration(route.cfg.UploadRateWindowSeconds)*time.Second)

	route.chi.Route("/api", func(r chi.Router) {
		r.Use(route.authMiddleware.VerifyToken)

		r.Get("/conversations", route.conversationController.GetChatList)
		r.Post("/conversations", route.conversationController.StartConversation)

		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			r.Get("/messages", route.messageController.GetMessages)
			r.With(sendLimit).Post("/messages", route.messageController.SendMessage)
			r.Post("/read", route.messageController.MarkRead)
			r.Post("/typing", route.messageController.SetTyping)
		})

		r.With(uploadLimit).Post("/attachments", route.attachmentController.UploadAttachments)
		r.Delete("/attachments", route.attachmentController.RemoveAttachment)

		r.Get("/outbox", route.outboxController.GetOutbox)
		r.With(sendLimit).Post("/outbox/retry", route.outboxController.RetryOutbox)
		r.Delete("/outbox/{messageID}", route.outboxController.DiscardPending)
	})
}
