package compose

import (
	"RecruitTalkAPI/internal/constant"
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCapabilityUnsupported = errors.New("capability not supported")
	ErrAlreadyRecording      = errors.New("recording already in progress")
	ErrNotRecording          = errors.New("no recording in progress")
	ErrRecordingTooLarge     = errors.New("recording exceeds the attachment size limit")
)

type AudioClip struct {
	Data     []byte
	MimeType string

	// Zero when the recorder does not measure it.
	Duration time.Duration
}

// AudioRecorder captures a single voice message at a time.
type AudioRecorder interface {
	Supported() bool
	Start(ctx context.Context, mimeType string) error
	Push(chunk []byte) error
	Stop() (AudioClip, error)
	Release()
}

// ChunkRecorder assembles a clip from chunks streamed by the client.
type ChunkRecorder struct {
	mu       sync.Mutex
	active   bool
	mimeType string
	chunks   [][]byte
	size     int
}

func NewChunkRecorder() *ChunkRecorder {
	return &ChunkRecorder{}
}

func (r *ChunkRecorder) Supported() bool { return true }

func (r *ChunkRecorder) Start(ctx context.Context, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return ErrAlreadyRecording
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	r.active = true
	r.mimeType = mimeType
	r.chunks = nil
	r.size = 0
	return nil
}

func (r *ChunkRecorder) Push(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return ErrNotRecording
	}
	if r.size+len(chunk) > constant.MaxAttachmentSize {
		return ErrRecordingTooLarge
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	r.chunks = append(r.chunks, buf)
	r.size += len(buf)
	return nil
}

// Stop concatenates every chunk received since Start.
func (r *ChunkRecorder) Stop() (AudioClip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return AudioClip{}, ErrNotRecording
	}

	data := make([]byte, 0, r.size)
	for _, c := range r.chunks {
		data = append(data, c...)
	}

	r.active = false
	r.chunks = nil
	r.size = 0

	return AudioClip{Data: data, MimeType: r.mimeType}, nil
}

func (r *ChunkRecorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = false
	r.chunks = nil
	r.size = 0
}

type UnsupportedRecorder struct{}

func (UnsupportedRecorder) Supported() bool { return false }

func (UnsupportedRecorder) Start(context.Context, string) error { return ErrCapabilityUnsupported }

func (UnsupportedRecorder) Push([]byte) error { return ErrCapabilityUnsupported }

func (UnsupportedRecorder) Stop() (AudioClip, error) { return AudioClip{}, ErrNotRecording }

func (UnsupportedRecorder) Release() {}
