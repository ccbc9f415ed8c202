package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 2 * time.Hour

// Lock coordinates exclusive runs per job so several worker replicas never
// sweep the same rows at once.
type Lock interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEqual(ctx context.Context, key, value string) (bool, error)
	LockKey(scope string) string
}

// RedisLock implements Lock with one SETNX-guarded key per job.
type RedisLock struct {
	client redisStore
	ttl    time.Duration

	mu     sync.Mutex
	owners map[string]string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{
		client: client,
		ttl:    ttl,
		owners: map[string]string{},
	}, nil
}

// Acquire tries to own the job's lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context, job string) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.client.LockKey(job), owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.owners[job] = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees the job's lock only if the owner value still matches. The
// compare and the delete run as one server-side operation, so a lock whose
// TTL lapsed and was taken over by another worker is never deleted here.
func (l *RedisLock) Release(ctx context.Context, job string) error {
	l.mu.Lock()
	owner := l.owners[job]
	l.mu.Unlock()
	if owner == "" {
		return nil
	}

	if _, err := l.client.DelIfEqual(ctx, l.client.LockKey(job), owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.mu.Lock()
	delete(l.owners, job)
	l.mu.Unlock()
	return nil
}
