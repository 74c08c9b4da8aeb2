package repository

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/model"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePresence(t *testing.T) {
	userID := uuid.New()
	seen := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		record := DecodePresence(userID, map[string]string{
			"status":     constant.PresenceOffline,
			"last_seen":  "1777888800000",
			"updated_at": "1777888800000",
		})

		assert.Equal(t, userID, record.UserID)
		assert.Equal(t, constant.PresenceOffline, record.Status)
		require.NotNil(t, record.LastSeen)
		assert.True(t, seen.Equal(*record.LastSeen))
		require.NotNil(t, record.UpdatedAt)
	})

	t.Run("Success - Bad Timestamps Ignored", func(t *testing.T) {
		record := DecodePresence(userID, map[string]string{
			"status":    constant.PresenceOnline,
			"last_seen": "yesterday",
		})

		assert.Equal(t, constant.PresenceOnline, record.Status)
		assert.Nil(t, record.LastSeen)
		assert.Nil(t, record.UpdatedAt)
	})
}

func TestStoragePaths(t *testing.T) {
	paths := storagePaths([]model.Attachment{
		{StoragePath: "attachments/u/1.png"},
		{},
		{StoragePath: "attachments/u/2.pdf"},
	})

	assert.Equal(t, []string{"attachments/u/1.png", "attachments/u/2.pdf"}, paths)
	assert.Empty(t, storagePaths(nil))
}
