package adapter

import (
	"RecruitTalkAPI/internal/helper"
	"RecruitTalkAPI/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const realtimeBuffer = 64

func ConversationChannel(conversationID uuid.UUID) string {
	return "realtime:conversation:" + conversationID.String()
}

func UserChannel(userID uuid.UUID) string {
	return "realtime:user:" + userID.String()
}

// RealtimeAdapter carries RealtimeEvents over Redis pub/sub so every API
// instance sees writes made through any other.
type RealtimeAdapter struct {
	redisAdapter *RedisAdapter
}

func NewRealtimeAdapter(redisAdapter *RedisAdapter) *RealtimeAdapter {
	return &RealtimeAdapter{
		redisAdapter: redisAdapter,
	}
}

func (a *RealtimeAdapter) PublishToConversation(ctx context.Context, conversationID uuid.UUID, event model.RealtimeEvent) error {
	return a.publish(ctx, ConversationChannel(conversationID), event)
}

func (a *RealtimeAdapter) PublishToUser(ctx context.Context, userID uuid.UUID, event model.RealtimeEvent) error {
	return a.publish(ctx, UserChannel(userID), event)
}

func (a *RealtimeAdapter) publish(ctx context.Context, channel string, event model.RealtimeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}

	_, err = helper.RetryWithBackoffContext(ctx, func() (struct{}, bool, error) {
		err := a.redisAdapter.Publish(ctx, channel, payload)
		return struct{}{}, err != nil && ctx.Err() == nil, err
	}, 2, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe listens on the user's own channel plus one channel per
// conversation.
func (a *RealtimeAdapter) Subscribe(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) (*RealtimeSubscription, error) {
	channels := make([]string, 0, len(conversationIDs)+1)
	channels = append(channels, UserChannel(userID))
	for _, id := range conversationIDs {
		channels = append(channels, ConversationChannel(id))
	}

	pubsub := a.redisAdapter.Client().Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe realtime channels: %w", err)
	}

	sub := &RealtimeSubscription{
		pubsub: pubsub,
		events: make(chan model.RealtimeEvent, realtimeBuffer),
		done:   make(chan struct{}),
	}
	sub.wg.Add(1)
	go sub.run()
	return sub, nil
}

type RealtimeSubscription struct {
	pubsub *redis.PubSub
	events chan model.RealtimeEvent
	done   chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *RealtimeSubscription) run() {
	defer s.wg.Done()
	defer close(s.events)

	for msg := range s.pubsub.Channel() {
		event, ok := DecodeRealtimeEvent(msg.Payload)
		if !ok {
			slog.Warn("Skipping malformed realtime payload", "channel", msg.Channel)
			continue
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func (s *RealtimeSubscription) Events() <-chan model.RealtimeEvent {
	return s.events
}

func (s *RealtimeSubscription) Add(ctx context.Context, conversationIDs ...uuid.UUID) error {
	if len(conversationIDs) == 0 {
		return nil
	}
	channels := make([]string, len(conversationIDs))
	for i, id := range conversationIDs {
		channels[i] = ConversationChannel(id)
	}
	return s.pubsub.Subscribe(ctx, channels...)
}

func (s *RealtimeSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
		s.wg.Wait()
	})
	return err
}

// DecodeRealtimeEvent parses a pub/sub payload. Payloads without a type or
// conversation are rejected.
func DecodeRealtimeEvent(payload string) (model.RealtimeEvent, bool) {
	var event model.RealtimeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, false
	}
	if event.Type == "" || event.ConversationID == uuid.Nil {
		return event, false
	}

	switch event.Type {
	case model.RealtimeMessageNew:
		return event, event.Message != nil
	case model.RealtimeTyping:
		return event, event.Typing != nil
	case model.RealtimeReadCursor:
		return event, event.ReadCursor != nil
	case model.RealtimeConversationNew:
		return event, event.Conversation != nil
	}
	return event, false
}
