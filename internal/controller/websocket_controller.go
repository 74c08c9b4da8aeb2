package controller

import (
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/middleware"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/service"
	"RecruitTalkAPI/internal/websocket"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	ws "github.com/gorilla/websocket"
)

type WebSocketController struct {
	hub      *websocket.Hub
	sessions *service.SessionService
	deps     websocket.ClientDeps
	upgrader ws.Upgrader
}

func NewWebSocketController(hub *websocket.Hub, sessions *service.SessionService, deps websocket.ClientDeps, allowedOrigins []string) *WebSocketController {
	return &WebSocketController{
		hub:      hub,
		sessions: sessions,
		deps:     deps,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker accepts requests without an Origin header and origins listed
// in allowed. A "*" entry accepts every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		if slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// ServeWS godoc
// @Summary      WebSocket Connection
// @Description  Upgrade HTTP connection to WebSocket. Requires Bearer token in Authorization header or 'token' query param.
// @Tags         websocket
// @Success      101  {string}  string  "Switching Protocols"
// @Failure      401  {object}  helper.ResponseError
// @Failure      503  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /ws [get]
func (c *WebSocketController) ServeWS(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	st, release, err := c.sessions.Acquire(r.Context(), *userContext)
	if err != nil {
		slog.Error("Failed to open session", "error", err, "userID", userContext.ID)
		helper.WriteError(w, helper.NewServiceUnavailableError(""))
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		release()
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}

	client := websocket.NewClient(c.hub, conn, st, release, c.deps)

	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
