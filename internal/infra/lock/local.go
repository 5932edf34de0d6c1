// Package lock provides per-key mutual exclusion for read-compute-write
// cycles on a single user's records.
//
// Local serializes goroutines inside one process. Redis extends the same
// guarantee across processes sharing a Redis instance.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/piucane/piucane/internal/domain"
)

// Local is an in-process keyed lock. The zero value is not usable; call NewLocal.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // capacity 1: holding the token = holding the lock
	refs int           // holders + waiters; entry is dropped at zero
}

var _ domain.Locker = (*Local)(nil)

// NewLocal creates an empty keyed lock.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.release(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, kl)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockTimeout, key, ctx.Err())
	}
}

// Ping always succeeds.
func (l *Local) Ping(context.Context) error { return nil }

// Held returns the number of keys currently tracked (held or awaited).
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Local) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
