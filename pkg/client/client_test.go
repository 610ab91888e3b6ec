package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeAPI struct {
	mu       sync.Mutex
	closing  int64
	gets     atomic.Int32
	lastAuth string
	lastKey  string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stock/summary", func(w http.ResponseWriter, r *http.Request) {
		f.gets.Add(1)
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		closing := f.closing
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, []StockRow{{SKU: "MOMO-VEG", Closing: decimal.NewFromInt(closing)}})
	})
	mux.HandleFunc("POST /production-requests", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastKey = r.Header.Get("Idempotency-Key")
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, ProductionRequest{ID: "req-1", Status: "pending"})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "steamed-momo" {
			w.Header().Set("X-Request-ID", "rid-9")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, LoginResult{AccessToken: "user-token"})
	})
	mux.HandleFunc("POST /inventory", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "validation failed", "request_id": "rid-1",
			"fields": map[string]string{"sku": "is required"},
		})
	})
	return mux
}

func (f *fakeAPI) seen() (auth, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth, f.lastKey
}

func (f *fakeAPI) setClosing(n int64) {
	f.mu.Lock()
	f.closing = n
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginSetsToken(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := New(srv.URL, WithToken("anon-key"))
	if _, err := c.StockSummary(context.Background(), "shop", ""); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if auth, _ := api.seen(); auth != "Bearer anon-key" {
		t.Errorf("expected anon key, got %q", auth)
	}

	if _, err := c.Login(context.Background(), "tashi@momo.test", "steamed-momo"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := c.StockSummary(context.Background(), "shop", ""); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if auth, _ := api.seen(); auth != "Bearer user-token" {
		t.Errorf("expected user token after login, got %q", auth)
	}
}

func TestAPIError(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()
	c := New(srv.URL)

	_, err := c.CreateItem(context.Background(), ItemInput{LocationID: "shop"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.RequestID != "rid-1" || apiErr.Fields["sku"] != "is required" {
		t.Errorf("unexpected error %+v", apiErr)
	}

	_, err = c.Login(context.Background(), "tashi@momo.test", "wrong")
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	if apiErr.RequestID != "rid-9" {
		t.Errorf("expected request id from header, got %q", apiErr.RequestID)
	}
}

func TestIdempotencyKeyHeader(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()
	c := New(srv.URL, WithToken("t"))

	if _, err := c.CreateProductionRequest(context.Background(), "key-1", ProductionRequestInput{StoreID: "shop"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, key := api.seen(); key != "key-1" {
		t.Errorf("expected Idempotency-Key key-1, got %q", key)
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCacheStaleWhileRevalidate(t *testing.T) {
	api := &fakeAPI{}
	api.setClosing(10)
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	clock := &fakeClock{t: time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)}
	c := New(srv.URL, WithCache(time.Minute, 10*time.Minute))
	c.cache.now = clock.now
	ctx := context.Background()

	rows, _ := c.StockSummary(ctx, "shop", "2024-03")
	if !rows[0].Closing.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10, got %s", rows[0].Closing)
	}

	api.setClosing(7)
	rows, _ = c.StockSummary(ctx, "shop", "2024-03")
	if !rows[0].Closing.Equal(decimal.NewFromInt(10)) || api.gets.Load() != 1 {
		t.Fatalf("expected fresh cache hit, got %s after %d gets", rows[0].Closing, api.gets.Load())
	}

	clock.advance(2 * time.Minute)
	rows, _ = c.StockSummary(ctx, "shop", "2024-03")
	if !rows[0].Closing.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected stale value while revalidating, got %s", rows[0].Closing)
	}
	c.Wait()

	rows, _ = c.StockSummary(ctx, "shop", "2024-03")
	if !rows[0].Closing.Equal(decimal.NewFromInt(7)) {
		t.Errorf("expected revalidated value 7, got %s", rows[0].Closing)
	}
	if got := api.gets.Load(); got != 2 {
		t.Errorf("expected 2 upstream gets, got %d", got)
	}
}

func TestCacheExpiredAndInvalidatedOnWrite(t *testing.T) {
	api := &fakeAPI{}
	api.setClosing(10)
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	clock := &fakeClock{t: time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)}
	c := New(srv.URL, WithCache(time.Minute, 10*time.Minute))
	c.cache.now = clock.now
	ctx := context.Background()

	_, _ = c.StockSummary(ctx, "shop", "2024-03")
	api.setClosing(4)
	if _, err := c.CreateProductionRequest(ctx, "", ProductionRequestInput{StoreID: "shop"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	rows, _ := c.StockSummary(ctx, "shop", "2024-03")
	if !rows[0].Closing.Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected write to invalidate the cache, got %s", rows[0].Closing)
	}

	api.setClosing(1)
	clock.advance(11 * time.Minute)
	rows, _ = c.StockSummary(ctx, "shop", "2024-03")
	if !rows[0].Closing.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected expired entry to reload synchronously, got %s", rows[0].Closing)
	}
}

func TestCacheDroppedOnTokenChange(t *testing.T) {
	api := &fakeAPI{}
	api.setClosing(10)
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := New(srv.URL, WithToken("manager-a"), WithCache(time.Minute, 10*time.Minute))
	ctx := context.Background()

	_, _ = c.StockSummary(ctx, "shop", "2024-03")
	api.setClosing(3)

	c.SetToken("manager-a")
	rows, _ := c.StockSummary(ctx, "shop", "2024-03")
	if !rows[0].Closing.Equal(decimal.NewFromInt(10)) || api.gets.Load() != 1 {
		t.Fatalf("expected same token to keep the cache, got %s after %d gets", rows[0].Closing, api.gets.Load())
	}

	c.SetToken("manager-b")
	rows, _ = c.StockSummary(ctx, "shop", "2024-03")
	if !rows[0].Closing.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected a fresh read for the new token, got %s", rows[0].Closing)
	}
	if auth, _ := api.seen(); api.gets.Load() != 2 || auth != "Bearer manager-b" {
		t.Errorf("expected upstream get as manager-b, got %d gets with %q", api.gets.Load(), auth)
	}
}
