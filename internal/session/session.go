// Package session keeps the per-user conversation scratch space that survives
// between messages of one registration flow.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is per-user key/value scratch space. Values are JSON-encoded.
type Store interface {
	// GetAttribute decodes key into dst and reports whether it was set.
	GetAttribute(ctx context.Context, userID int64, key string, dst any) (bool, error)
	SetAttribute(ctx context.Context, userID int64, key string, value any) error
	DeleteAttribute(ctx context.Context, userID int64, key string) error
	// Clear discards the whole session.
	Clear(ctx context.Context, userID int64) error
}

// RedisStore keeps each session in a redis hash.
type RedisStore struct {
	Redis *redis.Client
	// TTL refreshes on every write; zero keeps sessions forever.
	TTL time.Duration
}

// NewRedisStore creates a redis-backed session store.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Redis: rdb, TTL: ttl}
}

func sessionKey(userID int64) string {
	return "session:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) GetAttribute(ctx context.Context, userID int64, key string, dst any) (bool, error) {
	raw, err := s.Redis.HGet(ctx, sessionKey(userID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("session decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) SetAttribute(ctx context.Context, userID int64, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", key, err)
	}
	k := sessionKey(userID)
	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, k, key, raw)
	if s.TTL > 0 {
		pipe.Expire(ctx, k, s.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) DeleteAttribute(ctx context.Context, userID int64, key string) error {
	return s.Redis.HDel(ctx, sessionKey(userID), key).Err()
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	return s.Redis.Del(ctx, sessionKey(userID)).Err()
}

// MemoryStore is an in-process Store for single-instance runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]map[string][]byte
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]map[string][]byte)}
}

func (s *MemoryStore) GetAttribute(_ context.Context, userID int64, key string, dst any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.sessions[userID][key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("session decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) SetAttribute(_ context.Context, userID int64, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[userID] == nil {
		s.sessions[userID] = make(map[string][]byte)
	}
	s.sessions[userID][key] = raw
	return nil
}

func (s *MemoryStore) DeleteAttribute(_ context.Context, userID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions[userID], key)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}
