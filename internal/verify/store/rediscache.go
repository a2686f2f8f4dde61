package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"idgate/internal/verify/models"
)

// CachedContextStore decorates a ContextStore with a Redis read-through
// cache. Cache trouble never fails a request; lookups fall through to the
// backing store and the miss is logged.
type CachedContextStore struct {
	next   ContextStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedContextStore(next ContextStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedContextStore {
	return &CachedContextStore{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *CachedContextStore) Resolve(ctx context.Context, agencyToken, applicationToken string) (models.Context, error) {
	key := "idgate:context:" + agencyToken + ":" + applicationToken

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached models.Context
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn("discarding undecodable cached context", "key", key)
	} else if err != redis.Nil {
		s.logger.Warn("context cache read failed", "key", key, "error", err)
	}

	resolved, err := s.next.Resolve(ctx, agencyToken, applicationToken)
	if err != nil {
		return models.Context{}, err
	}

	if raw, err := json.Marshal(resolved); err == nil {
		if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.logger.Warn("context cache write failed", "key", key, "error", err)
		}
	}
	return resolved, nil
}
