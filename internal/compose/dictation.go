package compose

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrNotDictating = errors.New("no dictation session in progress")

// TranscriptFunc receives a transcript fragment. Interim fragments may be
// superseded by the next one; final fragments are committed.
type TranscriptFunc func(fragment string, final bool)

type SpeechRecognizer interface {
	Supported() bool
	Start(ctx context.Context, onTranscript TranscriptFunc) error
	Feed(fragment string, final bool) error
	Stop()
}

// StreamDictation relays transcripts produced on the client.
type StreamDictation struct {
	mu       sync.Mutex
	callback TranscriptFunc
}

func NewStreamDictation() *StreamDictation {
	return &StreamDictation{}
}

func (d *StreamDictation) Supported() bool { return true }

func (d *StreamDictation) Start(ctx context.Context, onTranscript TranscriptFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = onTranscript
	return nil
}

func (d *StreamDictation) Feed(fragment string, final bool) error {
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()

	if cb == nil {
		return ErrNotDictating
	}
	if strings.TrimSpace(fragment) == "" && !final {
		return nil
	}
	cb(fragment, final)
	return nil
}

func (d *StreamDictation) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = nil
}

type UnsupportedDictation struct{}

func (UnsupportedDictation) Supported() bool { return false }

func (UnsupportedDictation) Start(context.Context, TranscriptFunc) error {
	return ErrCapabilityUnsupported
}

func (UnsupportedDictation) Feed(string, bool) error { return ErrNotDictating }

func (UnsupportedDictation) Stop() {}
