package lock_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/piucane/piucane/internal/domain"
	"github.com/piucane/piucane/internal/infra/lock"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := lock.NewLocal()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "user-1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most 1 holder, saw %d", maxInside)
	}
	if l.Held() != 0 {
		t.Errorf("expected no tracked keys after release, got %d", l.Held())
	}
}

func TestLocal_IndependentKeys(t *testing.T) {
	l := lock.NewLocal()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()

	tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(tctx, "b")
	if err != nil {
		t.Fatalf("lock b should not wait on a: %v", err)
	}
	unlockB()
}

func TestLocal_TimeoutIsConcurrencyError(t *testing.T) {
	l := lock.NewLocal()

	unlock, err := l.Lock(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "user-1")
	if !errors.Is(err, domain.ErrConcurrency) {
		t.Fatalf("expected ErrConcurrency, got %v", err)
	}
	if !errors.Is(err, domain.ErrLockTimeout) {
		t.Errorf("expected ErrLockTimeout, got %v", err)
	}
}

func TestLocal_DoubleUnlockIsSafe(t *testing.T) {
	l := lock.NewLocal()
	unlock, _ := l.Lock(context.Background(), "k")
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	again, err := l.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("relock after double unlock: %v", err)
	}
	again()
}

// ─── Redis (requires PIUCANE_TEST_REDIS_ADDR) ──────────────────────────────

func testRedis(t *testing.T) *lock.Redis {
	t.Helper()
	addr := os.Getenv("PIUCANE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PIUCANE_TEST_REDIS_ADDR not set")
	}
	cfg := lock.DefaultRedisConfig()
	cfg.Addr = addr
	cfg.Prefix = "piucane:test:" + t.Name() + ":"
	r, err := lock.NewRedis(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedis_LockAndRelease(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()

	unlock, err := r.Lock(ctx, "user-1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := r.Lock(tctx, "user-1"); !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while held, got %v", err)
	}

	unlock()

	again, err := r.Lock(ctx, "user-1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestRedis_Ping(t *testing.T) {
	r := testRedis(t)
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
