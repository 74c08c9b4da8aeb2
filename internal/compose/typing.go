package compose

import (
	"RecruitTalkAPI/internal/constant"
	"strings"
	"sync"
	"time"
)

// TypingIndicator debounces typing signals for one compose buffer.
//
// Idle -> Typing on the first non-empty input, emitting start immediately.
// While typing, start is re-emitted at most once per heartbeat and every input
// re-arms the inactivity timer. Empty input, blur while empty, send, inactivity
// and Close move back to Idle with exactly one stop.
type TypingIndicator struct {
	clock     Clock
	heartbeat time.Duration
	timeout   time.Duration
	onStart   func()
	onStop    func()

	// transition serializes state changes together with their callback so
	// observers see start/stop in the order they happened.
	transition sync.Mutex

	mu       sync.Mutex
	typing   bool
	closed   bool
	lastEmit time.Time
	timer    Timer
	gen      uint64
}

func NewTypingIndicator(clock Clock, onStart, onStop func()) *TypingIndicator {
	if clock == nil {
		clock = SystemClock
	}
	if onStart == nil {
		onStart = func() {}
	}
	if onStop == nil {
		onStop = func() {}
	}
	return &TypingIndicator{
		clock:     clock,
		heartbeat: constant.TypingHeartbeat,
		timeout:   constant.TypingTimeout,
		onStart:   onStart,
		onStop:    onStop,
	}
}

// Input reports the current compose buffer after a keystroke or a dictated
// fragment.
func (t *TypingIndicator) Input(text string) {
	if strings.TrimSpace(text) == "" {
		t.stop(false)
		return
	}

	t.transition.Lock()
	defer t.transition.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	emit := !t.typing || now.Sub(t.lastEmit) >= t.heartbeat
	t.typing = true
	if emit {
		t.lastEmit = now
	}
	t.armLocked()
	t.mu.Unlock()

	if emit {
		t.onStart()
	}
}

// Blur stops typing only when the buffer is empty.
func (t *TypingIndicator) Blur(text string) {
	if strings.TrimSpace(text) == "" {
		t.stop(false)
	}
}

func (t *TypingIndicator) Sent() {
	t.stop(false)
}

// Close emits a final stop if typing and ignores all later input.
func (t *TypingIndicator) Close() {
	t.stop(true)
}

func (t *TypingIndicator) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

func (t *TypingIndicator) stop(closing bool) {
	t.transition.Lock()
	defer t.transition.Unlock()

	t.mu.Lock()
	if closing {
		t.closed = true
	}
	wasTyping := t.typing
	t.typing = false
	t.disarmLocked()
	t.mu.Unlock()

	if wasTyping {
		t.onStop()
	}
}

func (t *TypingIndicator) expire(gen uint64) {
	t.transition.Lock()
	defer t.transition.Unlock()

	t.mu.Lock()
	if gen != t.gen || !t.typing {
		t.mu.Unlock()
		return
	}
	t.typing = false
	t.timer = nil
	t.mu.Unlock()

	t.onStop()
}

func (t *TypingIndicator) armLocked() {
	t.disarmLocked()
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.timeout, func() { t.expire(gen) })
}

func (t *TypingIndicator) disarmLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
