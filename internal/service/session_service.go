package service

import (
	"RecruitTalkAPI/internal/config"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/store"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionsClosed = errors.New("session service closed")

type session struct {
	store     *store.Store
	refs      int
	idleSince time.Time
	ready     chan struct{}
	err       error
}

// SessionService keeps one loaded store per connected user. Stores are
// shared by every websocket and HTTP request of that user and are closed
// once nobody has held them for the idle timeout.
type SessionService struct {
	backend  store.Backend
	outbox   store.OutboxStore
	idle     time.Duration
	newStore func(user model.UserDTO) *store.Store
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	closed   bool

	stopCh   chan struct{}
	stopOnce sync.Once
	reaperWG sync.WaitGroup
}

func NewSessionService(cfg *config.AppConfig, backend store.Backend, outbox store.OutboxStore) *SessionService {
	s := &SessionService{
		backend:  backend,
		outbox:   outbox,
		idle:     time.Duration(cfg.SessionIdleMinutes) * time.Minute,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*session),
		stopCh:   make(chan struct{}),
	}
	s.newStore = func(user model.UserDTO) *store.Store {
		return store.New(user, s.backend, store.WithOutboxStore(s.outbox))
	}
	return s
}

// Start runs the idle reaper until Close.
func (s *SessionService) Start() {
	interval := s.idle / 2
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}

	s.reaperWG.Add(1)
	go func() {
		defer s.reaperWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.ReapIdle()
			}
		}
	}()
}

// Acquire returns the user's loaded store. The caller must invoke release
// exactly once when done with it.
func (s *SessionService) Acquire(ctx context.Context, user model.UserDTO) (*store.Store, func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrSessionsClosed
	}

	sess, ok := s.sessions[user.ID]
	if ok {
		sess.refs++
		s.mu.Unlock()
	} else {
		sess = &session{store: s.newStore(user), refs: 1, ready: make(chan struct{})}
		s.sessions[user.ID] = sess
		s.mu.Unlock()

		sess.err = sess.store.Load(ctx)
		if sess.err != nil {
			slog.Error("Failed to load user session", "error", sess.err, "userID", user.ID)
			s.mu.Lock()
			if s.sessions[user.ID] == sess {
				delete(s.sessions, user.ID)
			}
			s.mu.Unlock()
			_ = sess.store.Close()
		}
		close(sess.ready)
	}

	select {
	case <-sess.ready:
	case <-ctx.Done():
		s.release(user.ID, sess)
		return nil, nil, ctx.Err()
	}

	if sess.err != nil {
		s.release(user.ID, sess)
		return nil, nil, sess.err
	}

	var once sync.Once
	return sess.store, func() { once.Do(func() { s.release(user.ID, sess) }) }, nil
}

func (s *SessionService) release(userID uuid.UUID, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.refs--
	if sess.refs <= 0 {
		sess.refs = 0
		sess.idleSince = s.now()
	}
}

// ReapIdle closes stores nobody has held for the idle timeout.
func (s *SessionService) ReapIdle() int {
	now := s.now()

	s.mu.Lock()
	var stale []*session
	for id, sess := range s.sessions {
		select {
		case <-sess.ready:
		default:
			continue
		}
		if sess.refs == 0 && now.Sub(sess.idleSince) >= s.idle {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		if err := sess.store.Close(); err != nil {
			slog.Warn("Failed to close idle session", "error", err, "userID", sess.store.User().ID)
		}
	}
	if len(stale) > 0 {
		slog.Info("Closed idle sessions", "count", len(stale))
	}
	return len(stale)
}

func (s *SessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the reaper and closes every store.
func (s *SessionService) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.reaperWG.Wait()

		s.mu.Lock()
		s.closed = true
		sessions := s.sessions
		s.sessions = make(map[uuid.UUID]*session)
		s.mu.Unlock()

		for _, sess := range sessions {
			<-sess.ready
			_ = sess.store.Close()
		}
	})
}
