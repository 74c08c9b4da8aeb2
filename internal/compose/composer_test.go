package compose

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/store"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	uploads []model.UploadFile
	sizes   []int64
	removed []model.Attachment
}

func (u *fakeUploader) Upload(ctx context.Context, user model.UserDTO, file model.UploadFile) (*model.Attachment, error) {
	var read int64
	if file.Reader != nil {
		read, _ = io.Copy(io.Discard, file.Reader)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, file)
	u.sizes = append(u.sizes, read)
	if u.err != nil {
		return nil, u.err
	}

	path := helper.AttachmentStoragePath(user.ID, file.Name)
	return &model.Attachment{
		ID:          uuid.New(),
		Type:        helper.AttachmentTypeFromMIME(file.MimeType),
		URL:         "https://cdn.example.com/" + path,
		Name:        file.Name,
		Size:        file.Size,
		MimeType:    file.MimeType,
		StoragePath: path,
	}, nil
}

func (u *fakeUploader) Remove(ctx context.Context, user model.UserDTO, attachment model.Attachment) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.removed = append(u.removed, attachment)
	return nil
}

func (u *fakeUploader) uploadCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.uploads)
}

type fakeSender struct {
	mu       sync.Mutex
	err      error
	payloads []model.SendMessagePayload
	typing   []bool
}

func (s *fakeSender) Send(ctx context.Context, conversationID uuid.UUID, payload model.SendMessagePayload) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)

	msg := &model.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Content:        payload.Content,
		Type:           payload.MessageType,
		Attachments:    payload.Attachments,
	}
	if s.err != nil {
		if errors.Is(s.err, store.ErrMessagePending) {
			msg.Status = constant.MessageStatusFailed
			return msg, s.err
		}
		return nil, s.err
	}
	msg.Status = constant.MessageStatusSent
	return msg, nil
}

func (s *fakeSender) StartTyping(ctx context.Context, conversationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = append(s.typing, true)
	return nil
}

func (s *fakeSender) StopTyping(ctx context.Context, conversationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = append(s.typing, false)
	return nil
}

type recordedEvents struct {
	mu      sync.Mutex
	notices []model.Notice
	states  []State
}

func (e *recordedEvents) Notice(n model.Notice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notices = append(e.notices, n)
}

func (e *recordedEvents) StateChanged(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, s)
}

func (e *recordedEvents) noticeTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.notices))
	for i, n := range e.notices {
		out[i] = n.Message
	}
	return out
}

type composerFixture struct {
	composer *Composer
	uploader *fakeUploader
	sender   *fakeSender
	events   *recordedEvents
	clock    *fakeClock
}

func newComposerFixture(t *testing.T, opts ...Option) *composerFixture {
	f := &composerFixture{
		uploader: &fakeUploader{},
		sender:   &fakeSender{},
		events:   &recordedEvents{},
		clock:    newFakeClock(),
	}
	user := model.UserDTO{ID: uuid.New(), TenantID: uuid.New(), Role: constant.RoleStudent}
	opts = append([]Option{WithClock(f.clock)}, opts...)
	f.composer = NewComposer(user, uuid.New(), f.uploader, f.sender, f.events, opts...)
	t.Cleanup(f.composer.Close)
	return f
}

func imageFile(name string) model.UploadFile {
	return model.UploadFile{Name: name, Size: 1024, MimeType: "image/png", Reader: strings.NewReader("png")}
}

func TestComposerSend(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Text With Image", func(t *testing.T) {
		f := newComposerFixture(t)

		added := f.composer.AddFiles(ctx, []model.UploadFile{imageFile("photo.png")})
		require.Len(t, added, 1)
		f.composer.SetText("Hello")

		_, err := f.composer.Send(ctx)
		require.NoError(t, err)

		require.Len(t, f.sender.payloads, 1)
		payload := f.sender.payloads[0]
		assert.Equal(t, "Hello", payload.Content)
		require.Len(t, payload.Attachments, 1)
		assert.Equal(t, constant.MessageTypeImage, payload.Attachments[0].Type)
		assert.Equal(t, constant.MessageTypeImage, payload.MessageType)

		assert.Empty(t, f.composer.Content())
		assert.Empty(t, f.composer.State().Attachments)

		f.composer.Close()
		assert.Equal(t, []bool{true, false}, f.sender.typing)
	})

	t.Run("Fail - Nothing To Send", func(t *testing.T) {
		f := newComposerFixture(t)

		f.composer.SetText("   ")
		assert.False(t, f.composer.CanSend())

		_, err := f.composer.Send(ctx)

		assert.ErrorIs(t, err, ErrNothingToSend)
		assert.Empty(t, f.sender.payloads)
	})

	t.Run("Success - Attachments Only", func(t *testing.T) {
		f := newComposerFixture(t)

		f.composer.AddFiles(ctx, []model.UploadFile{
			imageFile("a.png"),
			{Name: "clip.mp4", Size: 2048, MimeType: "video/mp4"},
		})

		payload, err := f.composer.BuildPayload()

		require.NoError(t, err)
		assert.Empty(t, payload.Content)
		assert.Equal(t, constant.MessageTypeVideo, payload.MessageType)
	})

	t.Run("Success - Pending Clears Buffer", func(t *testing.T) {
		f := newComposerFixture(t)
		f.sender.err = fmt.Errorf("%w: connection reset", store.ErrMessagePending)

		f.composer.SetText("queued")
		msg, err := f.composer.Send(ctx)

		assert.ErrorIs(t, err, store.ErrMessagePending)
		require.NotNil(t, msg)
		assert.Empty(t, f.composer.Content())
		assert.Contains(t, f.events.noticeTexts(), "Message could not be delivered yet and will be retried")
	})

	t.Run("Fail - Hard Error Keeps Buffer", func(t *testing.T) {
		f := newComposerFixture(t)
		f.sender.err = store.ErrRejected

		f.composer.SetText("keep me")
		_, err := f.composer.Send(ctx)

		assert.ErrorIs(t, err, store.ErrRejected)
		assert.Equal(t, "keep me", f.composer.Content())
		assert.Contains(t, f.events.noticeTexts(), "Failed to send message")
	})

	t.Run("Success - Typing Stops Once On Send", func(t *testing.T) {
		f := newComposerFixture(t)

		f.composer.SetText("h")
		f.composer.SetText("hi")
		_, err := f.composer.Send(ctx)
		require.NoError(t, err)
		f.composer.Blur()

		f.composer.Close()
		assert.Equal(t, []bool{true, false}, f.sender.typing)
	})
}

func TestComposerAttachments(t *testing.T) {
	ctx := context.Background()

	t.Run("Fail - Eleventh Attachment Rejected", func(t *testing.T) {
		f := newComposerFixture(t)

		files := make([]model.UploadFile, 10)
		for i := range files {
			files[i] = imageFile(fmt.Sprintf("%d.png", i))
		}
		require.Len(t, f.composer.AddFiles(ctx, files), 10)
		before := f.composer.State().Attachments

		added := f.composer.AddFiles(ctx, []model.UploadFile{imageFile("extra.png")})

		assert.Empty(t, added)
		assert.Equal(t, before, f.composer.State().Attachments)
		assert.Equal(t, 10, f.uploader.uploadCount())
		assert.Contains(t, f.events.noticeTexts(), "You can attach up to 10 files per message")
	})

	t.Run("Fail - Batch Over Limit", func(t *testing.T) {
		f := newComposerFixture(t)

		files := make([]model.UploadFile, 12)
		for i := range files {
			files[i] = imageFile(fmt.Sprintf("%d.png", i))
		}

		added := f.composer.AddFiles(ctx, files)

		assert.Len(t, added, 10)
		assert.Len(t, f.composer.State().Attachments, 10)
		assert.Equal(t, []string{"You can attach up to 10 files per message"}, f.events.noticeTexts())
	})

	t.Run("Fail - Oversized File", func(t *testing.T) {
		f := newComposerFixture(t)

		added := f.composer.AddFiles(ctx, []model.UploadFile{
			{Name: "huge.mov", Size: constant.MaxAttachmentSize + 1, MimeType: "video/quicktime"},
			imageFile("ok.png"),
		})

		assert.Len(t, added, 1)
		assert.Equal(t, 1, f.uploader.uploadCount())
		assert.Contains(t, f.events.noticeTexts(), "huge.mov is larger than 20 MB")
	})

	t.Run("Fail - Upload Error", func(t *testing.T) {
		f := newComposerFixture(t)
		f.uploader.err = errors.New("storage down")

		added := f.composer.AddFiles(ctx, []model.UploadFile{imageFile("a.png")})

		assert.Empty(t, added)
		assert.Empty(t, f.composer.State().Attachments)
		assert.Zero(t, f.composer.State().Uploading)
		assert.Contains(t, f.events.noticeTexts(), "Failed to upload a.png")
	})

	t.Run("Success - Remove Attachment", func(t *testing.T) {
		f := newComposerFixture(t)

		added := f.composer.AddFiles(ctx, []model.UploadFile{imageFile("a.png"), imageFile("b.png")})
		require.Len(t, added, 2)

		require.NoError(t, f.composer.RemoveAttachment(added[0].ID))

		state := f.composer.State()
		require.Len(t, state.Attachments, 1)
		assert.Equal(t, added[1].ID, state.Attachments[0].ID)
		require.Len(t, f.uploader.removed, 1)
		assert.Equal(t, added[0].StoragePath, f.uploader.removed[0].StoragePath)

		assert.ErrorIs(t, f.composer.RemoveAttachment(uuid.New()), ErrAttachmentNotFound)
	})
}

func TestComposerRecording(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Empty Recording Discarded", func(t *testing.T) {
		f := newComposerFixture(t, WithRecorder(NewChunkRecorder()))

		require.NoError(t, f.composer.StartRecording(ctx, "audio/webm"))
		assert.True(t, f.composer.State().Recording)
		assert.False(t, f.composer.CanSend())

		att, err := f.composer.StopRecording(ctx)

		assert.NoError(t, err)
		assert.Nil(t, att)
		assert.Zero(t, f.uploader.uploadCount())
		assert.Empty(t, f.composer.State().Attachments)
		assert.False(t, f.composer.State().Recording)
		assert.Empty(t, f.events.noticeTexts())
	})

	t.Run("Success - Voice Message Uploaded", func(t *testing.T) {
		f := newComposerFixture(t, WithRecorder(NewChunkRecorder()))

		require.NoError(t, f.composer.StartRecording(ctx, "audio/webm"))
		require.NoError(t, f.composer.PushAudio([]byte("abc")))
		require.NoError(t, f.composer.PushAudio([]byte("defg")))
		f.clock.Advance(1500 * time.Millisecond)

		att, err := f.composer.StopRecording(ctx)

		require.NoError(t, err)
		require.NotNil(t, att)
		assert.Equal(t, constant.MessageTypeAudio, att.Type)
		assert.Equal(t, int64(1500), att.DurationMs)
		assert.True(t, strings.HasPrefix(att.Name, "voice-message-"))
		assert.Equal(t, []int64{7}, f.uploader.sizes)

		payload, err := f.composer.BuildPayload()
		require.NoError(t, err)
		assert.Equal(t, constant.MessageTypeAudio, payload.MessageType)
	})

	t.Run("Fail - Recorder Unsupported", func(t *testing.T) {
		f := newComposerFixture(t)

		err := f.composer.StartRecording(ctx, "")

		assert.ErrorIs(t, err, ErrCapabilityUnsupported)
		assert.False(t, f.composer.State().Recording)
		assert.Contains(t, f.events.noticeTexts(), "Audio recording is not supported")
	})

	t.Run("Success - Close Releases Recorder", func(t *testing.T) {
		recorder := NewChunkRecorder()
		f := newComposerFixture(t, WithRecorder(recorder))

		require.NoError(t, f.composer.StartRecording(ctx, "audio/ogg"))
		require.NoError(t, f.composer.PushAudio([]byte("abc")))
		f.composer.SetText("typing while recording")

		f.composer.Close()

		assert.ErrorIs(t, recorder.Push([]byte("late")), ErrNotRecording)
		assert.Equal(t, []bool{true, false}, f.sender.typing)
		assert.Zero(t, f.uploader.uploadCount())
	})
}

func TestComposerDictation(t *testing.T) {
	ctx := context.Background()

	t.Run("Fail - Dictation Unsupported", func(t *testing.T) {
		f := newComposerFixture(t)

		err := f.composer.StartDictation(ctx)

		assert.ErrorIs(t, err, ErrCapabilityUnsupported)
		assert.Equal(t, []string{"Voice input is not supported"}, f.events.noticeTexts())
	})

	t.Run("Success - Transcripts Append To Buffer", func(t *testing.T) {
		f := newComposerFixture(t, WithDictation(NewStreamDictation()))

		f.composer.SetText("Note:")
		require.NoError(t, f.composer.StartDictation(ctx))

		require.NoError(t, f.composer.FeedTranscript("my", false))
		assert.Equal(t, "Note: my", f.composer.Content())

		require.NoError(t, f.composer.FeedTranscript("my visa", true))
		require.NoError(t, f.composer.FeedTranscript("is ready", false))
		assert.Equal(t, "Note: my visa is ready", f.composer.Content())

		f.composer.StopDictation()
		assert.Equal(t, "Note: my visa is ready", f.composer.Content())
		assert.ErrorIs(t, f.composer.FeedTranscript("late", true), ErrNotDictating)

		f.composer.Close()
		assert.Equal(t, []bool{true, false}, f.sender.typing)
	})
}
