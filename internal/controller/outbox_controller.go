package controller

import (
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/middleware"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OutboxController struct {
	messageService *service.MessageService
}

func NewOutboxController(messageService *service.MessageService) *OutboxController {
	return &OutboxController{
		messageService: messageService,
	}
}

// GetOutbox godoc
// @Summary      Get Outbox
// @Description  Messages that could not be delivered yet, oldest first.
// @Tags         outbox
// @Produce      json
// @Success      200  {object}  helper.ResponseSuccess{data=model.OutboxResponse}
// @Failure      401  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/outbox [get]
func (c *OutboxController) GetOutbox(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	resp, err := c.messageService.GetOutbox(r.Context(), *userContext)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}

// RetryOutbox godoc
// @Summary      Retry Outbox
// @Description  Resend every pending message once. Messages rejected by the backend are dropped.
// @Tags         outbox
// @Produce      json
// @Success      200  {object}  helper.ResponseSuccess{data=model.RetryResult}
// @Failure      401  {object}  helper.ResponseError
// @Failure      500  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/outbox/retry [post]
func (c *OutboxController) RetryOutbox(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	resp, err := c.messageService.RetryOutbox(r.Context(), *userContext)
	if err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, resp)
}

// DiscardPending godoc
// @Summary      Discard Pending Message
// @Description  Drop a pending message without sending it.
// @Tags         outbox
// @Produce      json
// @Param        messageID path string true "Message ID (UUID)"
// @Success      200  {object}  helper.ResponseSuccess
// @Failure      400  {object}  helper.ResponseError
// @Failure      401  {object}  helper.ResponseError
// @Failure      404  {object}  helper.ResponseError
// @Security     BearerAuth
// @Router       /api/outbox/{messageID} [delete]
func (c *OutboxController) DiscardPending(w http.ResponseWriter, r *http.Request) {
	userContext, ok := r.Context().Value(middleware.UserContextKey).(*model.UserDTO)
	if !ok {
		helper.WriteError(w, helper.NewUnauthorizedError(""))
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		helper.WriteError(w, helper.NewBadRequestError("Invalid Message ID"))
		return
	}

	if err := c.messageService.DiscardPending(r.Context(), *userContext, messageID); err != nil {
		helper.WriteError(w, err)
		return
	}

	helper.WriteSuccess(w, nil)
}
