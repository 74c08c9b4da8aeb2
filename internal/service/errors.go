package service

import (
	"RecruitTalkAPI/internal/compose"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/store"
	"errors"
	"log/slog"
)

// toAppError maps store and composer failures onto HTTP-facing errors.
func toAppError(err error) error {
	var appErr *helper.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, store.ErrEmptyPayload),
		errors.Is(err, store.ErrMessageTooLong),
		errors.Is(err, store.ErrTooManyAttachments),
		errors.Is(err, compose.ErrNothingToSend):
		return helper.NewBadRequestError(err.Error())
	case errors.Is(err, store.ErrConversationNotFound):
		return helper.NewNotFoundError("Conversation not found")
	case errors.Is(err, store.ErrPendingNotFound):
		return helper.NewNotFoundError("Pending message not found")
	case errors.Is(err, store.ErrRejected):
		return helper.NewForbiddenError("")
	case errors.Is(err, store.ErrClosed), errors.Is(err, compose.ErrComposerClosed):
		return helper.NewServiceUnavailableError("Session is closing, please retry")
	}

	slog.Error("Unexpected service error", "error", err)
	return helper.NewInternalServerError("")
}
