package backing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	store := New(Config{Addr: mr.Addr(), KeyPrefix: "fb"})
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.SetWithTTL(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}

	data, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("expected v1, got %q", data)
	}

	present, err := store.Delete(ctx, "k1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !present {
		t.Fatal("expected key to be present before delete")
	}

	if _, err := store.Get(ctx, "k1"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}

	present, err = store.Delete(ctx, "k1")
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if present {
		t.Fatal("expected key to be absent on second delete")
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	if err := store.SetWithTTL(ctx, "short", []byte("x"), time.Second); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "short"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after TTL expiry, got %v", err)
	}
}

func TestDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for _, key := range []string{"p:a", "p:b", "p:c", "q:a"} {
		if err := store.SetWithTTL(ctx, key, []byte("x"), time.Minute); err != nil {
			t.Fatalf("SetWithTTL(%s) failed: %v", key, err)
		}
	}

	count, err := store.DeleteByPrefix(ctx, "p:")
	if err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 removed keys, got %d", count)
	}

	if _, err := store.Get(ctx, "q:a"); err != nil {
		t.Fatalf("expected untouched key to survive, got %v", err)
	}
}

func TestIncrFixedWindow(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "counter", time.Minute)
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}

	mr.FastForward(2 * time.Minute)

	got, err := store.Incr(ctx, "counter", time.Minute)
	if err != nil {
		t.Fatalf("Incr after window failed: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected window reset to 1, got %d", got)
	}
}

func TestLazyConnectConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			errs <- store.SetWithTTL(ctx, "race", []byte("x"), time.Minute)
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent first use failed: %v", err)
		}
	}
}

func TestUnreachableStoreIsUnavailable(t *testing.T) {
	ctx := context.Background()
	store := New(Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer func() { _ = store.Close() }()

	_, err := store.Get(ctx, "k")
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailability, got %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestNewWithClient(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewWithClient(rdb, Config{KeyPrefix: "fb"})
	defer func() { _ = store.Close() }()

	if err := store.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}
