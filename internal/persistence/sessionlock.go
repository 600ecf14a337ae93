package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockNotAcquired is returned when another worker holds the lock for the
// same phone number and the acquire retries are exhausted.
var ErrLockNotAcquired = errors.New("session lock not acquired")

// SessionLocker serializes state-machine runs per phone number. Messages from
// different phone numbers proceed in parallel; two messages from the same
// number must not interleave session updates.
type SessionLocker interface {
	// Acquire blocks (with bounded retries) until the lock for phone is held
	// and returns a release function.
	Acquire(ctx context.Context, phone string) (release func(), err error)
}

const (
	lockKeyPrefix    = "wa:session-lock:"
	lockRetryBackoff = 100 * time.Millisecond
	lockMaxRetries   = 50
)

// redisSessionLocker implements SessionLocker via SET NX PX. The lock value is
// random so only the holder's release deletes the key.
type redisSessionLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionLocker returns a Redis-backed locker, or an in-process keyed mutex
// when no Redis client is available. The fallback only guards a single
// instance, which matches how the service runs without Redis.
func NewSessionLocker(r *Redis, ttl time.Duration, logger *zap.Logger) SessionLocker {
	if r == nil || r.Client == nil {
		logger.Warn("redis not configured; using in-process session locks")
		return newLocalSessionLocker()
	}
	return &redisSessionLocker{client: r.Client, ttl: ttl, logger: logger}
}

func (l *redisSessionLocker) Acquire(ctx context.Context, phone string) (func(), error) {
	key := lockKeyPrefix + phone
	token := uuid.NewString()

	for attempt := 0; attempt < lockMaxRetries; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}
	return nil, ErrLockNotAcquired
}

// release deletes the key only while we still own it. A plain GET/DEL pair is
// acceptable here: the TTL bounds the damage of the narrow race, and a lost
// lock only delays the next message for the same phone.
func (l *redisSessionLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	current, err := l.client.Get(ctx, key).Result()
	if err != nil {
		return
	}
	if current == token {
		if err := l.client.Del(ctx, key).Err(); err != nil {
			l.logger.Warn("failed to release session lock", zap.String("key", key), zap.Error(err))
		}
	}
}

// localSessionLocker is the single-instance fallback: one mutex per phone.
type localSessionLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalSessionLocker() *localSessionLocker {
	return &localSessionLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localSessionLocker) Acquire(ctx context.Context, phone string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[phone]
	if !ok {
		m = &sync.Mutex{}
		l.locks[phone] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
