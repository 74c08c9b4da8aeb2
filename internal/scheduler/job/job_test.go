package job

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploads struct {
	orphans []repository.Upload
	cutoff  time.Time
	deleted []string
	listErr error
}

func (f *fakeUploads) ListOrphans(_ context.Context, cutoff time.Time, limit int) ([]repository.Upload, error) {
	f.cutoff = cutoff
	if f.listErr != nil {
		return nil, f.listErr
	}
	n := min(len(f.orphans), limit)
	return append([]repository.Upload(nil), f.orphans[:n]...), nil
}

func (f *fakeUploads) Delete(_ context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	for i, u := range f.orphans {
		if u.StoragePath == path {
			f.orphans = append(f.orphans[:i], f.orphans[i+1:]...)
			break
		}
	}
	return nil
}

type objectCall struct {
	path   string
	public bool
}

type fakeStorage struct {
	calls []objectCall
	fail  map[string]bool
}

func (f *fakeStorage) Delete(_ context.Context, path string, isPublic bool) error {
	f.calls = append(f.calls, objectCall{path, isPublic})
	if f.fail[path] {
		return errors.New("s3 unavailable")
	}
	return nil
}

func TestRunUploadCleanup(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	uploads := &fakeUploads{orphans: []repository.Upload{
		{StoragePath: "attachments/a/one.pdf", IsPrivate: true},
		{StoragePath: "attachments/a/two.png"},
		{StoragePath: "attachments/b/three.webm", IsPrivate: true},
	}}
	storage := &fakeStorage{fail: map[string]bool{"attachments/a/two.png": true}}

	deleted, err := RunUploadCleanup(context.Background(), uploads, storage, &config.AppConfig{UploadRetentionHours: 6}, now)
	require.NoError(t, err)

	assert.Equal(t, 2, deleted)
	assert.Equal(t, now.Add(-6*time.Hour), uploads.cutoff)
	assert.Equal(t, []string{"attachments/a/one.pdf", "attachments/b/three.webm"}, uploads.deleted)
	assert.Contains(t, storage.calls, objectCall{"attachments/a/one.pdf", false})
	assert.Contains(t, storage.calls, objectCall{"attachments/a/two.png", true})
}

func TestRunUploadCleanup_ListError(t *testing.T) {
	uploads := &fakeUploads{listErr: errors.New("db down")}

	_, err := RunUploadCleanup(context.Background(), uploads, &fakeStorage{}, &config.AppConfig{}, time.Now())
	assert.Error(t, err)
}

type fakeSweeper struct {
	cutoff time.Time
	ids    []uuid.UUID
}

func (f *fakeSweeper) SweepStale(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	f.cutoff = cutoff
	return f.ids, nil
}

func TestRunPresenceSweep_DefaultsStaleWindow(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{ids: []uuid.UUID{uuid.New()}}

	swept, err := RunPresenceSweep(context.Background(), sweeper, &config.AppConfig{}, now)
	require.NoError(t, err)
	assert.Len(t, swept, 1)
	assert.Equal(t, now.Add(-15*time.Minute), sweeper.cutoff)
}
