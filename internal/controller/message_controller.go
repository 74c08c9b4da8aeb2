package controller

import (
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/middleware"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/service"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type MessageController struct {
	messageService *service.MessageService
}

func NewMessageController(messageService *service.MessageService) *MessageController {
	return &MessageController{
		messageService: messageService,
	}
}

func conversationIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		return uuid.Nil, helper.NewBadRequestError("Invalid Conversation ID")
	}
	return id, nil
}

func parseMessagesQuery(conversationID uuid.UUID, r *http.Request) (model.GetMessagesRequest, error) {
	req := model.GetMessagesRequest{ConversationID: conversationID}

	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return req, helper.NewBadRequestError("Invalid before timestamp")
		}
		req.Before = &before
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return req, helper.NewBadRequestError("Invalid limit")
		}
		req.Limit = limit
	}

	return req, nil
}

// GetMessages godoc
// @Summary      Get Messages
// @Description  Message timeline of a conversation grouped by day, with delivery receipts for own messages.
// @Tags         message
// @Produce      json
// @Param        conversationID path string true "Conversation ID (UUID)"
// @Param        before query string false "Only messages older than this RFC 3339 timestamp"
// @Param        limit query int false "Number of messages to fetch (default 50, max 100)"
// @Success      200  {object}  helper.ResponseWithPagination{data=model.TimelineResponse}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/conversations/{conversationID}/messages [get]
func (c *MessageController) GetMessages(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	conversationID, err := conversationIDParam(r)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	req, err := parseMessagesQuery(conversationID, r)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	resp, err := c.messageService.GetTimeline(r.Context(), *userContext, req)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccessWithPagination(w, resp, nextBefore(resp), resp.HasMore)
}

// nextBefore is the "before" value that fetches the page preceding resp.
func nextBefore(resp *model.TimelineResponse) string {
	if !resp.HasMore {
		return ""
	}
	for _, day := range resp.Days {
		for _, group := range day.Groups {
			if len(group.Messages) > 0 {
				return group.Messages[0].CreatedAt.UTC().Format(time.RFC3339Nano)
			}
		}
	}
	return ""
}

// SendMessage godoc
// @Summary      Send Message
// @Description  Send a message with text and/or uploaded attachments. Returns 202 when the message was queued for retry.
// @Tags         message
// @Accept       json
// @Produce      json
// @Param        conversationID path string true "Conversation ID (UUID)"
// @Param        request body model.SendMessageRequest true "Send Message Request"
// @Success      200  {object}  helper.ResponseSuccess{data=model.Message}
// @Success      202  {object}  helper.ResponseSuccess{data=model.Message}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      429  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/conversations/{conversationID}/messages [post]
func (c *MessageController) SendMessage(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	conversationID, err := conversationIDParam(r)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid request body", "error", err)
		helper.WriteError(w, helper.NewBadRequestError(""))
		return
	}

	msg, pending, err := c.messageService.SendMessage(r.Context(), *userContext, conversationID, req)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	if pending {
		helper.WriteAccepted(w, msg)
		return
	}
	helper.WriteSuccess(w, msg)
}

// MarkRead godoc
// @Summary      Mark Read
// @Description  Advance the read cursor of the current user. An empty body marks everything up to now as read.
// @Tags         message
// @Accept       json
// @Produce      json
// @Param        conversationID path string true "Conversation ID (UUID)"
// @Param        request body model.MarkReadRequest false "Mark Read Request"
// @Success      200  {object}  helper.ResponseSuccess
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/conversations/{conversationID}/read [post]
func (c *MessageController) MarkRead(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	conversationID, err := conversationIDParam(r)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	var req model.MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Invalid request body", "error", err)
		helper.WriteError(w, helper.NewBadRequestError(""))
		return
	}

	if err := c.messageService.MarkRead(r.Context(), *userContext, conversationID, req); err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, nil)
}

// SetTyping godoc
// @Summary      Typing Indicator
// @Description  Broadcast that the current user started or stopped typing.
// @Tags         message
// @Accept       json
// @Produce      json
// @Param        conversationID path string true "Conversation ID (UUID)"
// @Param        request body model.TypingRequest true "Typing Request"
// @Success      200  {object}  helper.ResponseSuccess
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      403  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/conversations/{conversationID}/typing [post]
func (c *MessageController) SetTyping(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	conversationID, err := conversationIDParam(r)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	var req model.TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid request body", "error", err)
		helper.WriteError(w, helper.NewBadRequestError(""))
		return
	}

	if err := c.messageService.SetTyping(r.Context(), *userContext, conversationID, req); err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, nil)
}
