package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type PresenceTracker interface {
	MarkOnline(ctx context.Context, userID uuid.UUID) error
	MarkOffline(ctx context.Context, userID uuid.UUID) error
}

type ContactDirectory interface {
	ContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type Hub struct {
	clients     map[*Client]bool
	userClients map[uuid.UUID]map[*Client]bool
	Register    chan *Client
	Unregister  chan *Client

	presence PresenceTracker
	contacts ContactDirectory
	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once

	statusMu sync.Mutex
	statuses map[uuid.UUID]*statusGate
}

// statusGate orders the online/offline writes of one user. Only the newest
// transition is written; older ones still waiting are skipped.
type statusGate struct {
	write   sync.Mutex
	seq     uint64
	pending int
}

func NewHub(presence PresenceTracker, contacts ContactDirectory) *Hub {
	return &Hub{
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		userClients: make(map[uuid.UUID]map[*Client]bool),
		presence:    presence,
		contacts:    contacts,
		stop:        make(chan struct{}),
		statuses:    make(map[uuid.UUID]*statusGate),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			if _, ok := h.userClients[client.UserID]; !ok {
				h.userClients[client.UserID] = make(map[*Client]bool)

				gate, seq := h.beginStatus(client.UserID)
				go h.broadcastUserStatus(client.UserID, true, gate, seq)
			}
			h.userClients[client.UserID][client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()

				if userSet, ok := h.userClients[client.UserID]; ok {
					delete(userSet, client)
					if len(userSet) == 0 {
						delete(h.userClients, client.UserID)

						gate, seq := h.beginStatus(client.UserID)
						go h.broadcastUserStatus(client.UserID, false, gate, seq)
					}
				}
			}
			h.mu.Unlock()

		case <-h.stop:
			return
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// OnlineUsers reports which of ids hold at least one live connection on this
// node.
func (h *Hub) OnlineUsers(ids []uuid.UUID) map[uuid.UUID]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	online := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if len(h.userClients[id]) > 0 {
			online[id] = true
		}
	}
	return online
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) BroadcastToUser(userID uuid.UUID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.userClients[userID] {
		if !client.enqueue(data) {
			slog.Warn("Dropping slow websocket client", "userID", userID)
			go h.unregister(client)
		}
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.stop:
	}
}

func (h *Hub) BroadcastToContacts(userID uuid.UUID, event Event) {
	if h.contacts == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	targetUserIDs, err := h.contacts.ContactIDs(ctx, userID)
	if err != nil {
		slog.Error("Failed to fetch contacts for broadcast", "error", err, "userID", userID)
		return
	}

	for _, targetID := range targetUserIDs {
		h.BroadcastToUser(targetID, event)
	}
}

func (h *Hub) beginStatus(userID uuid.UUID) (*statusGate, uint64) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()

	gate, ok := h.statuses[userID]
	if !ok {
		gate = &statusGate{}
		h.statuses[userID] = gate
	}
	gate.seq++
	gate.pending++
	return gate, gate.seq
}

func (h *Hub) isLatestStatus(gate *statusGate, seq uint64) bool {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	return gate.seq == seq
}

func (h *Hub) endStatus(userID uuid.UUID, gate *statusGate) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()

	gate.pending--
	if gate.pending == 0 {
		delete(h.statuses, userID)
	}
}

func (h *Hub) broadcastUserStatus(userID uuid.UUID, isOnline bool, gate *statusGate, seq uint64) {
	defer h.endStatus(userID, gate)
	gate.write.Lock()
	defer gate.write.Unlock()

	if !h.isLatestStatus(gate, seq) {
		return
	}

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var err error
		if isOnline {
			err = h.presence.MarkOnline(ctx, userID)
		} else {
			err = h.presence.MarkOffline(ctx, userID)
		}
		cancel()
		if err != nil {
			slog.Error("Failed to update user presence", "error", err, "userID", userID)
		}
	}

	eventType := EventUserOffline
	if isOnline {
		eventType = EventUserOnline
	}

	now := time.Now().UnixMilli()
	event := Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"user_id":      userID,
			"is_online":    isOnline,
			"last_seen_at": now,
		},
		Meta: &EventMeta{
			Timestamp: now,
			SenderID:  userID,
		},
	}

	h.BroadcastToContacts(userID, event)
}
