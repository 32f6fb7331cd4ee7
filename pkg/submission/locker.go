package submission

import (
	"context"
	"sync"
	"time"

	"github.com/preuvely/storematch/pkg/redis"
)

// LocalLocker serializes work per key within one process. It ignores the
// TTL and is used when Redis is disabled.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates a new in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

// WithLock runs fn while holding key, waiting up to timeout to take it
func (l *LocalLocker) WithLock(ctx context.Context, key string, _, timeout time.Duration, fn func(context.Context) error) error {
	lock := l.ref(key)
	defer l.unref(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return redis.ErrLockNotAcquired
	}
	defer func() { <-lock.sem }()

	return fn(ctx)
}

func (l *LocalLocker) ref(key string) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock := l.locks[key]
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}
