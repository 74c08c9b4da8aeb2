package controller

import (
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessagesQuery(t *testing.T) {
	convID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/x/messages?before=2026-05-04T10:00:00Z&limit=20", nil)
	parsed, err := parseMessagesQuery(convID, req)
	require.NoError(t, err)
	assert.Equal(t, convID, parsed.ConversationID)
	require.NotNil(t, parsed.Before)
	assert.True(t, parsed.Before.Equal(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, 20, parsed.Limit)

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/x/messages", nil)
	parsed, err = parseMessagesQuery(convID, req)
	require.NoError(t, err)
	assert.Nil(t, parsed.Before)
	assert.Zero(t, parsed.Limit)

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/x/messages?before=yesterday", nil)
	_, err = parseMessagesQuery(convID, req)
	appErr := helper.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/x/messages?limit=many", nil)
	_, err = parseMessagesQuery(convID, req)
	assert.Error(t, err)
}

func TestConversationIDParam(t *testing.T) {
	convID := uuid.New()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("conversationID", convID.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := conversationIDParam(req)
	require.NoError(t, err)
	assert.Equal(t, convID, got)

	rctx = chi.NewRouteContext()
	rctx.URLParams.Add("conversationID", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	_, err = conversationIDParam(req)
	assert.Error(t, err)
}

func TestNextBefore(t *testing.T) {
	oldest := time.Date(2026, 5, 3, 9, 30, 0, 0, time.UTC)
	resp := &model.TimelineResponse{
		HasMore: true,
		Days: []model.TimelineDay{
			{Groups: []model.MessageGroup{{Messages: []model.TimelineMessage{
				{Message: model.Message{ID: uuid.New(), CreatedAt: oldest}},
				{Message: model.Message{ID: uuid.New(), CreatedAt: oldest.Add(time.Minute)}},
			}}}},
		},
	}
	assert.Equal(t, "2026-05-03T09:30:00Z", nextBefore(resp))

	resp.HasMore = false
	assert.Empty(t, nextBefore(resp))

	assert.Empty(t, nextBefore(&model.TimelineResponse{HasMore: true}))
}
