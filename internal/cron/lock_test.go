package cron

import (
	"context"
	"testing"
	"time"
)

type fakeRedisStore struct {
	values map[string]string
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}}
}

func (f *fakeRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) DelIfEqual(ctx context.Context, key, value string) (bool, error) {
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func (f *fakeRedisStore) LockKey(scope string) string { return "sn:cron:lock:" + scope }

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}

	ok, err := lock.Acquire(context.Background(), "sweep")
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}

	other, err := NewRedisLock(store, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	ok, err = other.Acquire(context.Background(), "sweep")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second instance acquired a held lock")
	}

	if err := lock.Release(context.Background(), "sweep"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	ok, err = other.Acquire(context.Background(), "sweep")
	if err != nil || !ok {
		t.Fatalf("acquire after release = %v, %v", ok, err)
	}
}

func TestRedisLockReleaseOnlyByOwner(t *testing.T) {
	store := newFakeRedisStore()
	owner, _ := NewRedisLock(store, time.Minute)
	intruder, _ := NewRedisLock(store, time.Minute)

	if ok, _ := owner.Acquire(context.Background(), "sweep"); !ok {
		t.Fatal("owner failed to acquire")
	}
	// Intruder never acquired; releasing must leave the lock in place.
	if err := intruder.Release(context.Background(), "sweep"); err != nil {
		t.Fatalf("intruder release: %v", err)
	}
	if _, held := store.values[store.LockKey("sweep")]; !held {
		t.Fatal("lock vanished after non-owner release")
	}
}

func TestRedisLockReleaseAfterTakeoverLeavesNewOwner(t *testing.T) {
	store := newFakeRedisStore()
	stale, _ := NewRedisLock(store, time.Minute)
	successor, _ := NewRedisLock(store, time.Minute)

	if ok, _ := stale.Acquire(context.Background(), "sweep"); !ok {
		t.Fatal("initial acquire")
	}
	// TTL lapse followed by another worker taking the lock.
	delete(store.values, store.LockKey("sweep"))
	if ok, _ := successor.Acquire(context.Background(), "sweep"); !ok {
		t.Fatal("takeover acquire")
	}

	if err := stale.Release(context.Background(), "sweep"); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, held := store.values[store.LockKey("sweep")]; !held {
		t.Fatal("stale owner deleted the successor's lock")
	}
}

func TestRedisLockJobsAreIndependent(t *testing.T) {
	store := newFakeRedisStore()
	lock, _ := NewRedisLock(store, time.Minute)

	if ok, _ := lock.Acquire(context.Background(), "a"); !ok {
		t.Fatal("acquire a")
	}
	if ok, _ := lock.Acquire(context.Background(), "b"); !ok {
		t.Fatal("holding a must not block b")
	}
}
