package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory implementation of the redis command subset
// used by the store
type fakeRedis struct {
	data      map[string]string
	ttls      map[string]time.Duration
	failGet   error
	failSetEx error
	failDel   error
	failExist error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failSetEx != nil {
		return redis.NewStatusResult("", f.failSetEx)
	}
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.failDel != nil {
		return redis.NewIntResult(0, f.failDel)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			delete(f.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.failExist != nil {
		return redis.NewIntResult(0, f.failExist)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func newTestStore(rdb redisCmdable) *Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(rdb, time.Hour, 3*time.Second, logger)
}

func TestStore_Register(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestStore(rdb)

	err := s.Register(context.Background(), "tok123", "user-1", 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "user-1", rdb.data["refresh_token:tok123"])
	assert.Equal(t, 24*time.Hour, rdb.ttls["refresh_token:tok123"])
}

func TestStore_Rotate(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestStore(rdb)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "tok123", "user-1", 24*time.Hour))

	userID, err := s.Rotate(ctx, "tok123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// Прямое соответствие удалено, токен в blacklist с grace TTL
	_, forward := rdb.data["refresh_token:tok123"]
	assert.False(t, forward)
	assert.Equal(t, "blacklisted", rdb.data["blacklist:tok123"])
	assert.Equal(t, time.Hour, rdb.ttls["blacklist:tok123"])
}

func TestStore_Rotate_SecondUseRevoked(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestStore(rdb)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "tok123", "user-1", 24*time.Hour))

	_, err := s.Rotate(ctx, "tok123")
	require.NoError(t, err)

	_, err = s.Rotate(ctx, "tok123")
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestStore_Rotate_Unknown(t *testing.T) {
	s := newTestStore(newFakeRedis())

	_, err := s.Rotate(context.Background(), "never-seen")
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestStore_Rotate_CrashWindowIsUnknown(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestStore(rdb)
	ctx := context.Background()

	// Состояние после сбоя между Del и SetEx:
	// соответствия нет, blacklist-метки тоже нет
	require.NoError(t, s.Register(ctx, "tok123", "user-1", 24*time.Hour))
	delete(rdb.data, "refresh_token:tok123")

	_, err := s.Rotate(ctx, "tok123")
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestStore_Rotate_FailsClosedOnRedisErrors(t *testing.T) {
	ctx := context.Background()
	transport := errors.New("i/o timeout")

	t.Run("exists fails", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.failExist = transport
		s := newTestStore(rdb)

		_, err := s.Rotate(ctx, "tok123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTokenUnknown)
		assert.NotErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("get fails", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.failGet = transport
		s := newTestStore(rdb)

		_, err := s.Rotate(ctx, "tok123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTokenUnknown)
	})

	t.Run("blacklist write fails", func(t *testing.T) {
		rdb := newFakeRedis()
		s := newTestStore(rdb)
		require.NoError(t, s.Register(ctx, "tok123", "user-1", time.Hour))
		rdb.failSetEx = transport

		_, err := s.Rotate(ctx, "tok123")
		require.Error(t, err)
	})
}

func TestStore_IsBlacklisted(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestStore(rdb)
	ctx := context.Background()

	ok, err := s.IsBlacklisted(ctx, "tok123")
	require.NoError(t, err)
	assert.False(t, ok)

	rdb.data["blacklist:tok123"] = "blacklisted"

	ok, err = s.IsBlacklisted(ctx, "tok123")
	require.NoError(t, err)
	assert.True(t, ok)
}
