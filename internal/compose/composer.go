package compose

import (
	"RecruitTalkAPI/internal/constant"
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/store"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNothingToSend      = errors.New("message has no content and no attachments")
	ErrComposerBusy       = errors.New("an upload or recording is still in progress")
	ErrAttachmentLimit    = errors.New("attachment limit reached")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrComposerClosed     = errors.New("composer closed")
	ErrDictationActive    = errors.New("dictation already in progress")
)

const (
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

type Uploader interface {
	Upload(ctx context.Context, user model.UserDTO, file model.UploadFile) (*model.Attachment, error)
	Remove(ctx context.Context, user model.UserDTO, attachment model.Attachment) error
}

// Sender is the slice of the conversation store the composer writes to.
type Sender interface {
	Send(ctx context.Context, conversationID uuid.UUID, payload model.SendMessagePayload) (*model.Message, error)
	StartTyping(ctx context.Context, conversationID uuid.UUID) error
	StopTyping(ctx context.Context, conversationID uuid.UUID) error
}

type Events interface {
	Notice(n model.Notice)
	StateChanged(s State)
}

type State struct {
	ConversationID uuid.UUID          `json:"conversation_id"`
	Content        string             `json:"content"`
	Attachments    []model.Attachment `json:"attachments"`
	Uploading      int                `json:"uploading"`
	Recording      bool               `json:"recording"`
	Dictating      bool               `json:"dictating"`
	CanSend        bool               `json:"can_send"`
}

type Option func(*Composer)

func WithClock(clock Clock) Option {
	return func(c *Composer) { c.clock = clock }
}

func WithRecorder(recorder AudioRecorder) Option {
	return func(c *Composer) { c.recorder = recorder }
}

func WithDictation(recognizer SpeechRecognizer) Option {
	return func(c *Composer) { c.dictation = recognizer }
}

// Composer assembles outbound messages for one conversation. Close must be
// called on every exit path.
type Composer struct {
	user           model.UserDTO
	conversationID uuid.UUID

	uploader  Uploader
	sender    Sender
	events    Events
	clock     Clock
	recorder  AudioRecorder
	dictation SpeechRecognizer
	typing    *TypingIndicator

	signals  chan bool
	pumpDone chan struct{}

	mu               sync.Mutex
	buffer           string
	interim          string
	attachments      []model.Attachment
	uploading        int
	recording        bool
	recordingStarted time.Time
	dictating        bool
	closed           bool

	closeOnce sync.Once
}

func NewComposer(user model.UserDTO, conversationID uuid.UUID, uploader Uploader, sender Sender, events Events, opts ...Option) *Composer {
	c := &Composer{
		user:           user,
		conversationID: conversationID,
		uploader:       uploader,
		sender:         sender,
		events:         events,
		clock:          SystemClock,
		recorder:       UnsupportedRecorder{},
		dictation:      UnsupportedDictation{},
		signals:        make(chan bool, 16),
		pumpDone:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = discardEvents{}
	}

	c.typing = NewTypingIndicator(c.clock,
		func() { c.signals <- true },
		func() { c.signals <- false },
	)

	go c.pumpSignals()

	return c
}

func (c *Composer) ConversationID() uuid.UUID {
	return c.conversationID
}

// pumpSignals forwards typing transitions to the store in emission order.
func (c *Composer) pumpSignals() {
	defer close(c.pumpDone)

	for typing := range c.signals {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var err error
		if typing {
			err = c.sender.StartTyping(ctx, c.conversationID)
		} else {
			err = c.sender.StopTyping(ctx, c.conversationID)
		}
		cancel()

		if err != nil {
			slog.Debug("Failed to publish typing signal", "error", err, "conversationID", c.conversationID, "typing", typing)
		}
	}
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Composer) stateLocked() State {
	attachments := make([]model.Attachment, len(c.attachments))
	copy(attachments, c.attachments)

	return State{
		ConversationID: c.conversationID,
		Content:        c.contentLocked(),
		Attachments:    attachments,
		Uploading:      c.uploading,
		Recording:      c.recording,
		Dictating:      c.dictating,
		CanSend:        c.canSendLocked(),
	}
}

func (c *Composer) publishState() {
	c.events.StateChanged(c.State())
}

func (c *Composer) notify(level, message string) {
	c.events.Notice(model.Notice{Level: level, Message: message})
}

// SetText replaces the compose buffer with text typed by the user.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.buffer = text
	c.interim = ""
	content := c.contentLocked()
	c.mu.Unlock()

	c.typing.Input(content)
	c.publishState()
}

func (c *Composer) Blur() {
	c.mu.Lock()
	content := c.contentLocked()
	c.mu.Unlock()

	c.typing.Blur(content)
}

func (c *Composer) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentLocked()
}

func (c *Composer) contentLocked() string {
	return joinFragment(c.buffer, c.interim)
}

func joinFragment(buffer, fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return buffer
	}
	if buffer == "" || strings.HasSuffix(buffer, " ") || strings.HasSuffix(buffer, "\n") {
		return buffer + fragment
	}
	return buffer + " " + fragment
}

func (c *Composer) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSendLocked()
}

func (c *Composer) canSendLocked() bool {
	if c.closed || c.uploading > 0 || c.recording {
		return false
	}
	return strings.TrimSpace(c.contentLocked()) != "" || len(c.attachments) > 0
}

// BuildPayload returns the message as it would be sent now.
func (c *Composer) BuildPayload() (model.SendMessagePayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildPayloadLocked()
}

func (c *Composer) buildPayloadLocked() (model.SendMessagePayload, error) {
	if c.closed {
		return model.SendMessagePayload{}, ErrComposerClosed
	}
	if c.uploading > 0 || c.recording {
		return model.SendMessagePayload{}, ErrComposerBusy
	}

	content := strings.TrimSpace(c.contentLocked())
	if content == "" && len(c.attachments) == 0 {
		return model.SendMessagePayload{}, ErrNothingToSend
	}

	attachments := make([]model.Attachment, len(c.attachments))
	copy(attachments, c.attachments)

	return model.SendMessagePayload{
		Content:     content,
		Attachments: attachments,
		MessageType: helper.InferMessageType(attachments),
	}, nil
}

// Send hands the current payload to the store. The buffer and attachments are
// cleared when the store accepted the message, including when it was queued
// for retry.
func (c *Composer) Send(ctx context.Context) (*model.Message, error) {
	c.mu.Lock()
	payload, err := c.buildPayloadLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.typing.Sent()

	msg, err := c.sender.Send(ctx, c.conversationID, payload)
	pending := errors.Is(err, store.ErrMessagePending)
	if err != nil && !pending {
		slog.Warn("Failed to send message", "error", err, "conversationID", c.conversationID)
		c.notify(NoticeError, "Failed to send message")
		return nil, err
	}

	c.mu.Lock()
	if strings.TrimSpace(c.contentLocked()) == payload.Content {
		c.buffer = ""
		c.interim = ""
	}
	c.attachments = withoutAttachments(c.attachments, payload.Attachments)
	c.mu.Unlock()

	if pending {
		c.notify(NoticeWarning, "Message could not be delivered yet and will be retried")
	}
	c.publishState()

	return msg, err
}

func withoutAttachments(current, sent []model.Attachment) []model.Attachment {
	if len(sent) == 0 {
		return current
	}
	sentIDs := make(map[uuid.UUID]bool, len(sent))
	for _, a := range sent {
		sentIDs[a.ID] = true
	}
	out := current[:0:0]
	for _, a := range current {
		if !sentIDs[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

// AddFiles validates and uploads files. Oversized files and files beyond the
// per-message limit are rejected with a notice without touching the current
// list. It returns the attachments that were added.
func (c *Composer) AddFiles(ctx context.Context, files []model.UploadFile) []model.Attachment {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	slots := constant.MaxAttachmentsPerMessage - len(c.attachments) - c.uploading
	accepted := make([]model.UploadFile, 0, len(files))
	var notices []string
	limitNoticed := false

	for _, f := range files {
		if f.Size > constant.MaxAttachmentSize {
			notices = append(notices, fmt.Sprintf("%s is larger than 20 MB", displayFileName(f.Name)))
			continue
		}
		if slots <= 0 {
			if !limitNoticed {
				notices = append(notices, fmt.Sprintf("You can attach up to %d files per message", constant.MaxAttachmentsPerMessage))
				limitNoticed = true
			}
			continue
		}
		slots--
		accepted = append(accepted, f)
	}
	c.uploading += len(accepted)
	c.mu.Unlock()

	for _, n := range notices {
		c.notify(NoticeError, n)
	}
	if len(accepted) == 0 {
		return nil
	}
	c.publishState()

	added := make([]model.Attachment, 0, len(accepted))
	for _, f := range accepted {
		if att := c.upload(ctx, f, 0); att != nil {
			added = append(added, *att)
		}
	}

	c.publishState()
	return added
}

// upload expects the caller to have reserved a slot in c.uploading.
func (c *Composer) upload(ctx context.Context, f model.UploadFile, duration time.Duration) *model.Attachment {
	att, err := c.uploader.Upload(ctx, c.user, f)

	c.mu.Lock()
	c.uploading--
	closed := c.closed
	if err == nil && !closed {
		if duration > 0 {
			att.DurationMs = duration.Milliseconds()
		}
		c.attachments = append(c.attachments, *att)
	}
	c.mu.Unlock()

	if err != nil {
		slog.Warn("Failed to upload attachment", "error", err, "userID", c.user.ID, "name", f.Name)
		c.notify(NoticeError, fmt.Sprintf("Failed to upload %s", displayFileName(f.Name)))
		return nil
	}

	if closed {
		c.removeStored(*att)
		return nil
	}

	out := *att
	return &out
}

func displayFileName(name string) string {
	if name == "" {
		return "File"
	}
	return name
}

// RemoveAttachment drops an attachment that has not been sent and deletes
// the stored object on a best-effort basis.
func (c *Composer) RemoveAttachment(id uuid.UUID) error {
	c.mu.Lock()
	idx := -1
	for i, a := range c.attachments {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return ErrAttachmentNotFound
	}
	removed := c.attachments[idx]
	c.attachments = append(c.attachments[:idx:idx], c.attachments[idx+1:]...)
	c.mu.Unlock()

	c.removeStored(removed)
	c.publishState()
	return nil
}

func (c *Composer) removeStored(att model.Attachment) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.uploader.Remove(ctx, c.user, att); err != nil {
		slog.Warn("Failed to delete orphaned attachment", "error", err, "path", att.StoragePath)
	}
}

// SetCapabilities swaps the recorder and speech recognizer. It fails with
// ErrComposerBusy while either is in use. A nil value means unsupported.
func (c *Composer) SetCapabilities(recorder AudioRecorder, recognizer SpeechRecognizer) error {
	if recorder == nil {
		recorder = UnsupportedRecorder{}
	}
	if recognizer == nil {
		recognizer = UnsupportedDictation{}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrComposerClosed
	}
	if c.recording || c.dictating {
		c.mu.Unlock()
		return ErrComposerBusy
	}
	previous := c.recorder
	c.recorder = recorder
	c.dictation = recognizer
	c.mu.Unlock()

	previous.Release()
	return nil
}

func (c *Composer) capabilities() (AudioRecorder, SpeechRecognizer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorder, c.dictation
}

func (c *Composer) StartRecording(ctx context.Context, mimeType string) error {
	recorder, _ := c.capabilities()
	if !recorder.Supported() {
		c.notify(NoticeError, "Audio recording is not supported")
		return ErrCapabilityUnsupported
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrComposerClosed
	}
	if c.recording {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.recording = true
	c.recordingStarted = c.clock.Now()
	c.mu.Unlock()

	if err := recorder.Start(ctx, mimeType); err != nil {
		recorder.Release()
		c.mu.Lock()
		c.recording = false
		c.mu.Unlock()

		slog.Warn("Failed to start recording", "error", err, "userID", c.user.ID)
		c.notify(NoticeError, "Could not start recording")
		c.publishState()
		return err
	}

	c.publishState()
	return nil
}

func (c *Composer) PushAudio(chunk []byte) error {
	recorder, _ := c.capabilities()
	err := recorder.Push(chunk)
	if errors.Is(err, ErrRecordingTooLarge) {
		c.notify(NoticeError, "Recording is larger than 20 MB")
	}
	return err
}

// StopRecording finishes the clip and uploads it as an audio attachment.
// An empty clip is dropped without an upload and without a notice.
func (c *Composer) StopRecording(ctx context.Context) (*model.Attachment, error) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return nil, ErrNotRecording
	}
	started := c.recordingStarted
	recorder := c.recorder
	c.mu.Unlock()

	defer recorder.Release()

	clip, err := recorder.Stop()
	stoppedAt := c.clock.Now()

	c.mu.Lock()
	c.recording = false
	reserved := err == nil && len(clip.Data) > 0 &&
		len(c.attachments)+c.uploading < constant.MaxAttachmentsPerMessage
	if reserved {
		c.uploading++
	}
	c.mu.Unlock()

	if err != nil {
		slog.Warn("Failed to stop recording", "error", err, "userID", c.user.ID)
		c.notify(NoticeError, "Recording failed")
		c.publishState()
		return nil, err
	}
	if len(clip.Data) == 0 {
		c.publishState()
		return nil, nil
	}
	if !reserved {
		c.notify(NoticeError, fmt.Sprintf("You can attach up to %d files per message", constant.MaxAttachmentsPerMessage))
		c.publishState()
		return nil, ErrAttachmentLimit
	}

	duration := clip.Duration
	if duration <= 0 {
		duration = stoppedAt.Sub(started)
	}

	mimeType := clip.MimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	file := model.UploadFile{
		Name:     fmt.Sprintf("voice-message-%d%s", stoppedAt.UnixMilli(), helper.ExtensionForMIME(mimeType)),
		Size:     int64(len(clip.Data)),
		MimeType: mimeType,
		Reader:   bytes.NewReader(clip.Data),
	}

	c.publishState()
	att := c.upload(ctx, file, duration)
	c.publishState()
	if att == nil {
		return nil, errors.New("failed to upload voice message")
	}
	return att, nil
}

func (c *Composer) StartDictation(ctx context.Context) error {
	_, dictation := c.capabilities()
	if !dictation.Supported() {
		c.notify(NoticeError, "Voice input is not supported")
		return ErrCapabilityUnsupported
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrComposerClosed
	}
	if c.dictating {
		c.mu.Unlock()
		return ErrDictationActive
	}
	c.dictating = true
	c.mu.Unlock()

	if err := dictation.Start(ctx, c.appendTranscript); err != nil {
		c.mu.Lock()
		c.dictating = false
		c.mu.Unlock()

		slog.Warn("Failed to start dictation", "error", err, "userID", c.user.ID)
		c.notify(NoticeError, "Could not start voice input")
		return err
	}

	c.publishState()
	return nil
}

func (c *Composer) FeedTranscript(fragment string, final bool) error {
	_, dictation := c.capabilities()
	return dictation.Feed(fragment, final)
}

func (c *Composer) appendTranscript(fragment string, final bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if final {
		c.buffer = joinFragment(c.buffer, fragment)
		c.interim = ""
	} else {
		c.interim = fragment
	}
	content := c.contentLocked()
	c.mu.Unlock()

	c.typing.Input(content)
	c.publishState()
}

// StopDictation commits any interim fragment.
func (c *Composer) StopDictation() {
	_, dictation := c.capabilities()
	dictation.Stop()

	c.mu.Lock()
	wasDictating := c.dictating
	c.dictating = false
	c.buffer = c.contentLocked()
	c.interim = ""
	c.mu.Unlock()

	if wasDictating {
		c.publishState()
	}
}

// Close stops typing, releases the recorder and the dictation session and
// waits for queued typing signals to be delivered. It is safe to call more
// than once.
func (c *Composer) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		recording := c.recording
		c.recording = false
		c.dictating = false
		recorder, dictation := c.recorder, c.dictation
		c.mu.Unlock()

		c.typing.Close()

		if recording {
			if _, err := recorder.Stop(); err != nil && !errors.Is(err, ErrNotRecording) {
				slog.Debug("Failed to stop recorder on close", "error", err)
			}
		}
		recorder.Release()
		dictation.Stop()

		close(c.signals)
		<-c.pumpDone
	})
}

type discardEvents struct{}

func (discardEvents) Notice(model.Notice) {}

func (discardEvents) StateChanged(State) {}
