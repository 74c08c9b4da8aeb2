package store

import (
	"RecruitTalkAPI/internal/model"
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Outbox tracks messages that have not been confirmed durable. Entries are
// mirrored to an optional OutboxStore; persistence failures are logged and
// never lose the in-memory entry.
type Outbox struct {
	userID  uuid.UUID
	persist OutboxStore

	mu      sync.Mutex
	entries map[uuid.UUID]model.PendingMessage
}

func NewOutbox(userID uuid.UUID, persist OutboxStore) *Outbox {
	return &Outbox{
		userID:  userID,
		persist: persist,
		entries: make(map[uuid.UUID]model.PendingMessage),
	}
}

// Restore loads entries persisted by an earlier session.
func (o *Outbox) Restore(ctx context.Context) error {
	if o.persist == nil {
		return nil
	}

	pending, err := o.persist.ListPending(ctx, o.userID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range pending {
		if _, ok := o.entries[p.Message.ID]; !ok {
			o.entries[p.Message.ID] = p
		}
	}
	return nil
}

func (o *Outbox) Add(ctx context.Context, pending model.PendingMessage) {
	o.mu.Lock()
	o.entries[pending.Message.ID] = pending
	o.mu.Unlock()

	o.save(ctx, pending)
}

// MarkFailed records another failed attempt.
func (o *Outbox) MarkFailed(ctx context.Context, id uuid.UUID, cause error) {
	o.mu.Lock()
	p, ok := o.entries[id]
	if ok {
		p.Attempts++
		if cause != nil {
			p.LastError = cause.Error()
		}
		o.entries[id] = p
	}
	o.mu.Unlock()

	if ok {
		o.save(ctx, p)
	}
}

func (o *Outbox) Remove(ctx context.Context, id uuid.UUID) bool {
	o.mu.Lock()
	_, ok := o.entries[id]
	delete(o.entries, id)
	o.mu.Unlock()

	if ok && o.persist != nil {
		if err := o.persist.RemovePending(ctx, o.userID, id); err != nil {
			slog.Warn("Failed to remove persisted pending message", "error", err, "userID", o.userID, "messageID", id)
		}
	}
	return ok
}

func (o *Outbox) Has(id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.entries[id]
	return ok
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// List returns pending messages oldest first.
func (o *Outbox) List() []model.PendingMessage {
	o.mu.Lock()
	out := make([]model.PendingMessage, 0, len(o.entries))
	for _, p := range o.entries {
		p.Message = p.Message.Clone()
		out = append(out, p)
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].QueuedAt.Equal(out[j].QueuedAt) {
			return out[i].QueuedAt.Before(out[j].QueuedAt)
		}
		return out[i].Message.ID.String() < out[j].Message.ID.String()
	})
	return out
}

func (o *Outbox) save(ctx context.Context, pending model.PendingMessage) {
	if o.persist == nil {
		return
	}
	if err := o.persist.SavePending(ctx, o.userID, pending); err != nil {
		slog.Warn("Failed to persist pending message", "error", err, "userID", o.userID, "messageID", pending.Message.ID)
	}
}
