package redis

import (
	"context"
	"encoding/json"
	"time"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/model"
	"analytics-ai-core/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.ConversationRepository = (*ConversationStore)(nil)

// ConversationStore keeps live conversation contexts in redis with a
// sliding TTL. A context expiring just means the next question starts
// a fresh conversation.
type ConversationStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewConversationStore(client RedisClient, ttl time.Duration) *ConversationStore {
	return &ConversationStore{client: client, ttl: ttl}
}

func key(id string) string { return "conversation:" + id }

func (s *ConversationStore) Save(ctx context.Context, conv *model.ConversationContext) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(conv.ID), data, s.ttl)
}

func (s *ConversationStore) Find(ctx context.Context, id string) (*model.ConversationContext, error) {
	data, err := s.client.Get(ctx, key(id))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var conv model.ConversationContext
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, key(id))
}

func (s *ConversationStore) Extend(ctx context.Context, id string) error {
	return s.client.Expire(ctx, key(id), s.ttl)
}
