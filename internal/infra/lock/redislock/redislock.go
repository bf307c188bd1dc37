// Package redislock serialises reservation attempts on a room across
// service instances with a Redis lease.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	domainrooms "hotelbooking/internal/domain/rooms"
)

var ErrLockTimeout = errors.New("redislock: timed out waiting for room lock")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// Client is the subset of go-redis commands the locker uses.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Locker hands out per-room leases. TTL bounds how long a crashed holder
// blocks the room; Wait bounds how long a caller queues for it.
type Locker struct {
	Client Client
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
	Retry  time.Duration
	Logger *slog.Logger
}

func New(client Client, logger *slog.Logger) *Locker {
	return &Locker{Client: client, Prefix: "hotelbooking:lock:room:", TTL: 10 * time.Second, Wait: 5 * time.Second, Retry: 25 * time.Millisecond, Logger: logger}
}

func (l *Locker) LockRoom(ctx context.Context, roomID domainrooms.RoomID) (func(), error) {
	key := l.Prefix + string(roomID)
	token := uuid.NewString()
	waitCtx, cancel := context.WithTimeout(ctx, l.wait())
	defer cancel()
	for {
		ok, err := l.Client.SetNX(waitCtx, key, token, l.ttl()).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, roomID)
			}
			return nil, fmt.Errorf("redislock: acquire %s: %w", key, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}
		timer := time.NewTimer(l.retry())
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, roomID)
		case <-timer.C:
		}
	}
}

func (l *Locker) releaser(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.Client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger().Warn("release room lock", "key", key, "error", err)
		}
	}
}

func (l *Locker) ttl() time.Duration {
	if l.TTL > 0 {
		return l.TTL
	}
	return 10 * time.Second
}

func (l *Locker) wait() time.Duration {
	if l.Wait > 0 {
		return l.Wait
	}
	return 5 * time.Second
}

func (l *Locker) retry() time.Duration {
	if l.Retry > 0 {
		return l.Retry
	}
	return 25 * time.Millisecond
}

func (l *Locker) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
