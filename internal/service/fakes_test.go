package service

import (
	"RecruitTalkAPI/internal/adapter"
	"RecruitTalkAPI/internal/model"
	"RecruitTalkAPI/internal/repository"
	"RecruitTalkAPI/internal/store"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeConversations struct {
	members   map[uuid.UUID]map[uuid.UUID]bool
	profiles  map[uuid.UUID]bool
	created   bool
	directID  uuid.UUID
	cursorAt  time.Time
	cursorErr error
}

func (f *fakeConversations) ListForUser(context.Context, uuid.UUID, uuid.UUID) ([]model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversations) GetForUser(_ context.Context, userID, conversationID uuid.UUID) (*model.Conversation, error) {
	return &model.Conversation{ID: conversationID, UnreadCount: 4}, nil
}

func (f *fakeConversations) GetOrCreateDirect(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, string, map[string]any) (uuid.UUID, bool, error) {
	return f.directID, f.created, nil
}

func (f *fakeConversations) IsParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return f.members[conversationID][userID], nil
}

func (f *fakeConversations) ParticipantIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeConversations) ContactIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeConversations) AdvanceReadCursor(context.Context, uuid.UUID, uuid.UUID, time.Time) (time.Time, error) {
	return f.cursorAt, f.cursorErr
}

func (f *fakeConversations) ProfileInTenant(_ context.Context, _ uuid.UUID, userID uuid.UUID) (bool, error) {
	return f.profiles[userID], nil
}

type fakeMessages struct {
	inserted  []model.Message
	existing  map[uuid.UUID]bool
	listLimit int
}

func (f *fakeMessages) List(_ context.Context, _ uuid.UUID, _ *time.Time, limit int) ([]model.Message, error) {
	f.listLimit = limit
	return nil, nil
}

func (f *fakeMessages) Insert(_ context.Context, msg model.Message) (*model.Message, bool, error) {
	if f.existing[msg.ID] {
		return &msg, false, nil
	}
	if f.existing == nil {
		f.existing = make(map[uuid.UUID]bool)
	}
	f.existing[msg.ID] = true
	f.inserted = append(f.inserted, msg)
	return &msg, true, nil
}

type published struct {
	channel uuid.UUID
	toUser  bool
	event   model.RealtimeEvent
}

type fakeRealtime struct {
	mu     sync.Mutex
	events []published
}

func (f *fakeRealtime) PublishToConversation(_ context.Context, id uuid.UUID, ev model.RealtimeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{channel: id, event: ev})
	return nil
}

func (f *fakeRealtime) PublishToUser(_ context.Context, id uuid.UUID, ev model.RealtimeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{channel: id, toUser: true, event: ev})
	return nil
}

func (f *fakeRealtime) Subscribe(context.Context, uuid.UUID, []uuid.UUID) (*adapter.RealtimeSubscription, error) {
	return nil, errors.New("realtime unavailable")
}

// fakeBackend satisfies store.Backend for session tests.
type fakeBackend struct {
	mu            sync.Mutex
	loads         int
	loadErr       error
	conversations []model.Conversation
	insertErr     error
}

func (f *fakeBackend) ListConversations(context.Context, model.UserDTO) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.conversations, nil
}

func (f *fakeBackend) ListMessages(context.Context, model.UserDTO, uuid.UUID, *time.Time, int) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeBackend) InsertMessage(_ context.Context, _ model.UserDTO, msg model.Message) (*model.Message, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return &msg, nil
}

func (f *fakeBackend) MarkRead(context.Context, model.UserDTO, uuid.UUID, time.Time) error {
	return nil
}

func (f *fakeBackend) SendTyping(context.Context, model.UserDTO, model.TypingSignal) error {
	return nil
}

func (f *fakeBackend) GetOrCreateConversation(context.Context, model.UserDTO, model.CreateConversationRequest) (*model.Conversation, error) {
	return nil, store.ErrRejected
}

func (f *fakeBackend) Subscribe(context.Context, model.UserDTO, []uuid.UUID) (store.Subscription, error) {
	return nil, errors.New("realtime unavailable")
}

func (f *fakeBackend) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type storedObject struct {
	data     []byte
	mimeType string
	public   bool
}

type fakeStorage struct {
	objects map[string]storedObject
	deleted []string
	putErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]storedObject)}
}

func (f *fakeStorage) GetPublicURL(path string) string {
	return "https://cdn.recruittalk.test/" + path
}

func (f *fakeStorage) GetPresignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://private.recruittalk.test/" + path + "?sig=1", nil
}

func (f *fakeStorage) Put(_ context.Context, reader io.Reader, _ int64, contentType string, path string, isPublic bool) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[path] = storedObject{data: data, mimeType: contentType, public: isPublic}
	return nil
}

func (f *fakeStorage) Delete(_ context.Context, path string, _ bool) error {
	f.deleted = append(f.deleted, path)
	delete(f.objects, path)
	return nil
}

type fakeUploads struct {
	recorded  []repository.Upload
	recordErr error
	linked    map[string]bool
}

func (f *fakeUploads) Record(_ context.Context, u repository.Upload) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, u)
	return nil
}

func (f *fakeUploads) DeleteUnlinked(_ context.Context, _ uuid.UUID, path string) (bool, error) {
	return !f.linked[path], nil
}

func (f *fakeUploads) GetOwned(_ context.Context, ownerID uuid.UUID, path string) (*repository.Upload, error) {
	for _, u := range f.recorded {
		if u.StoragePath == path && u.OwnerID == ownerID {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrUploadNotFound
}
