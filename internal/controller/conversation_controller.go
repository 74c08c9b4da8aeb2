package controller

import (
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/middleware"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/service"
	"encoding/json"
	"log/slog"
	"net/http"
)

type ConversationController struct {
	conversationService *service.ConversationService
}

func NewConversationController(conversationService *service.ConversationService) *ConversationController {
	return &ConversationController{
		conversationService: conversationService,
	}
}

// GetChatList godoc
// @Summary      Get Chat List
// @Description  Conversations of the current user, one entry per counterpart, newest first, with presence labels.
// @Tags         conversation
// @Produce      json
// @Param        query query string false "Filter by name, email or last message"
// @Success      200  {object}  helper.ResponseSuccess{data=[]model.ChatListEntryResponse}
// @Failure      401  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/conversations [get]
func (c *ConversationController) GetChatList(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	req := model.GetChatListRequest{
		Query: r.URL.Query().Get("query"),
	}

	resp, err := c.conversationService.GetChatList(r.Context(), *userContext, req)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}

// StartConversation godoc
// @Summary      Start Conversation
// @Description  Get or create the direct conversation with a counterpart in the same tenant.
// @Tags         conversation
// @Accept       json
// @Produce      json
// @Param        request body model.CreateConversationRequest true "Create Conversation Request"
// @Success      200  {object}  helper.ResponseSuccess{data=model.Conversation}
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/conversations [post]
func (c *ConversationController) StartConversation(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid request body", "error", err)
		helper.WriteError(w, helper.NewBadRequestError(""))
		return
	}

	resp, err := c.conversationService.StartConversation(r.Context(), *userContext, req)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}
