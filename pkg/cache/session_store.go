package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"datachat-be/pkg/store"
)

// SessionStore persists conversation sessions with a sliding TTL.
// Every Save refreshes the expiry; an idle session eventually vanishes.
type SessionStore interface {
	Save(ctx context.Context, session *store.Session) error
	Get(ctx context.Context, sessionID string) (*store.Session, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// --- Redis implementation ---

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (s *RedisSessionStore) Save(ctx context.Context, session *store.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, sessionKey(session.ID), payload, s.ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*store.Session, bool, error) {
	payload, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var session store.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, false, fmt.Errorf("unmarshal session: %w", err)
	}

	// Sliding expiry: touching a session keeps it alive
	_ = s.client.Expire(ctx, sessionKey(sessionID), s.ttl).Err()
	return &session, true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

// --- In-process implementation (no Redis configured) ---

type MemorySessionStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *MemorySessionStore) Save(ctx context.Context, session *store.Session) error {
	s.cache.Set(session.ID, session, s.ttl)
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (*store.Session, bool, error) {
	if x, found := s.cache.Get(sessionID); found {
		// Sliding expiry
		s.cache.Set(sessionID, x, s.ttl)
		return x.(*store.Session), true, nil
	}
	return nil, false, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}
