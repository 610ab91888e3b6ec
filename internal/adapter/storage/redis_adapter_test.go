package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisFetch_MissThenHit(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute, 5*time.Minute, nil)
	ns := "test-" + uuid.NewString()

	var loads atomic.Int32
	load := func(context.Context) ([]byte, error) {
		loads.Add(1)
		return []byte(`{"v":1}`), nil
	}

	for i := 0; i < 3; i++ {
		data, err := adapter.Fetch(ctx, ns, "k", load)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"v":1}` {
			t.Errorf("unexpected payload %s", data)
		}
	}
	if loads.Load() != 1 {
		t.Errorf("expected a single load, got %d", loads.Load())
	}
}

func TestRedisInvalidate(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute, 5*time.Minute, nil)
	ns := "test-" + uuid.NewString()

	v := "one"
	load := func(context.Context) ([]byte, error) { return []byte(v), nil }

	adapter.Fetch(ctx, ns, "k", load)
	v = "two"
	if err := adapter.Invalidate(ctx, ns); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	data, _ := adapter.Fetch(ctx, ns, "k", load)
	if string(data) != "two" {
		t.Errorf("expected reload after invalidation, got %s", data)
	}
}

func TestRedisFetch_StaleServedThenRevalidated(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, 50*time.Millisecond, time.Minute, nil)
	ns := "test-" + uuid.NewString()

	v := "old"
	load := func(context.Context) ([]byte, error) { return []byte(v), nil }
	adapter.Fetch(ctx, ns, "k", load)

	time.Sleep(100 * time.Millisecond)
	v = "new"
	data, _ := adapter.Fetch(ctx, ns, "k", load)
	if string(data) != "old" {
		t.Errorf("expected stale value, got %s", data)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, _ = adapter.Fetch(ctx, ns, "k", func(context.Context) ([]byte, error) { return []byte("unused"), nil })
		if string(data) == "new" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("expected background revalidation to store new value, got %s", data)
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute, time.Minute, nil)

	// Setup
	client.Del(ctx, idempotencyKeyPrefix+"test-idem-key")

	// First call should succeed
	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	// Second call should fail (key exists)
	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute, time.Minute, nil)

	// Setup
	client.Del(ctx, idempotencyKeyPrefix+"concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}
