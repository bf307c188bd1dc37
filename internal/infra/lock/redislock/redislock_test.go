package redislock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps keys in a map and understands the release script.
type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]string{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestLockRoomExcludesSecondHolder(t *testing.T) {
	store := newFakeRedis()
	l := New(store, nil)
	l.Wait = 60 * time.Millisecond
	l.Retry = 5 * time.Millisecond

	release, err := l.LockRoom(context.Background(), "room-1")
	require.NoError(t, err)

	_, err = l.LockRoom(context.Background(), "room-1")
	require.ErrorIs(t, err, ErrLockTimeout)

	other, err := l.LockRoom(context.Background(), "room-2")
	require.NoError(t, err)
	other()

	release()
	again, err := l.LockRoom(context.Background(), "room-1")
	require.NoError(t, err)
	again()
	assert.Empty(t, store.keys)
}

func TestReleaseKeepsForeignLease(t *testing.T) {
	store := newFakeRedis()
	l := New(store, nil)
	release, err := l.LockRoom(context.Background(), "room-1")
	require.NoError(t, err)

	store.keys[l.Prefix+"room-1"] = "someone-else"
	release()
	assert.Equal(t, "someone-else", store.keys[l.Prefix+"room-1"])
}

func TestLockRoomHonoursCancelledContext(t *testing.T) {
	store := newFakeRedis()
	l := New(store, nil)
	_, err := l.LockRoom(context.Background(), "room-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.LockRoom(ctx, "room-1")
	require.ErrorIs(t, err, context.Canceled)
}
