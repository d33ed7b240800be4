package session_test

import (
	"context"
	"testing"
	"time"

	"santabot/backend/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return session.NewRedisStore(rdb, ttl), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	// Arrange
	s, mr := newRedisStore(t, 0)
	ctx := context.Background()

	// Act
	require.NoError(t, s.SetAttribute(ctx, 1, "profile", stub{Name: "A"}))

	// Assert
	var got stub
	ok, err := s.GetAttribute(ctx, 1, "profile", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A", got.Name)

	assert.Equal(t, `{"name":"A"}`, mr.HGet("session:1", "profile"))
	assert.Zero(t, mr.TTL("session:1"), "no ttl configured")
}

func TestRedisStore_Missing(t *testing.T) {
	s, _ := newRedisStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.SetAttribute(ctx, 1, "cursor", 2))

	var got stub
	ok, err := s.GetAttribute(ctx, 1, "profile", &got)
	require.NoError(t, err)
	assert.False(t, ok, "missing field")

	var cursor int
	ok, err = s.GetAttribute(ctx, 2, "cursor", &cursor)
	require.NoError(t, err)
	assert.False(t, ok, "missing session")
}

func TestRedisStore_DeleteAndClear(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.SetAttribute(ctx, 1, "cursor", 2))
	require.NoError(t, s.SetAttribute(ctx, 1, "profile", stub{}))

	require.NoError(t, s.DeleteAttribute(ctx, 1, "cursor"))
	var cursor int
	ok, err := s.GetAttribute(ctx, 1, "cursor", &cursor)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx, 1))
	assert.False(t, mr.Exists("session:1"))
}

func TestRedisStore_TTLRefreshedOnWrite(t *testing.T) {
	s, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SetAttribute(ctx, 1, "cursor", 1))
	assert.Equal(t, time.Minute, mr.TTL("session:1"))

	mr.FastForward(40 * time.Second)
	require.NoError(t, s.SetAttribute(ctx, 1, "cursor", 2))
	assert.Equal(t, time.Minute, mr.TTL("session:1"))

	mr.FastForward(2 * time.Minute)
	var cursor int
	ok, err := s.GetAttribute(ctx, 1, "cursor", &cursor)
	require.NoError(t, err)
	assert.False(t, ok, "the session expired")
}

func TestRedisStore_CorruptValue(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	mr.HSet("session:1", "cursor", "not json")

	var cursor int
	_, err := s.GetAttribute(context.Background(), 1, "cursor", &cursor)

	assert.Error(t, err)
}
