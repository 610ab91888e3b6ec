package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/momoworks/momo-ops/internal/port"
)

type memEntry struct {
	data       []byte
	freshUntil time.Time
	staleUntil time.Time
}

// MemoryCache is the single-process counterpart of RedisAdapter.
type MemoryCache struct {
	mu           sync.Mutex
	freshTTL     time.Duration
	staleTTL     time.Duration
	now          func() time.Time
	versions     map[string]int
	entries      map[string]memEntry
	revalidating map[string]bool
	idempotency  map[string]time.Time
	wg           sync.WaitGroup
}

func NewMemoryCache(freshTTL, staleTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		freshTTL:     freshTTL,
		staleTTL:     staleTTL,
		now:          time.Now,
		versions:     map[string]int{},
		entries:      map[string]memEntry{},
		revalidating: map[string]bool{},
		idempotency:  map[string]time.Time{},
	}
}

var _ port.CacheRepository = (*MemoryCache)(nil)

func (c *MemoryCache) entryKey(namespace, key string) string {
	return namespace + ":" + strconv.Itoa(c.versions[namespace]) + ":" + key
}

func (c *MemoryCache) Fetch(ctx context.Context, namespace, key string, load port.Loader) ([]byte, error) {
	c.mu.Lock()
	k := c.entryKey(namespace, key)
	e, ok := c.entries[k]
	now := c.now()
	if ok && now.After(e.staleUntil) {
		delete(c.entries, k)
		ok = false
	}
	if !ok {
		c.mu.Unlock()
		data, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.put(k, data)
		return data, nil
	}
	if now.After(e.freshUntil) && !c.revalidating[k] {
		c.revalidating[k] = true
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			data, err := load(context.WithoutCancel(ctx))
			c.mu.Lock()
			delete(c.revalidating, k)
			c.mu.Unlock()
			if err == nil {
				c.put(k, data)
			}
		}()
	}
	c.mu.Unlock()
	return e.data, nil
}

func (c *MemoryCache) put(k string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[k] = memEntry{data: data, freshUntil: now.Add(c.freshTTL), staleUntil: now.Add(c.staleTTL)}
}

func (c *MemoryCache) Invalidate(ctx context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[namespace]++
	return nil
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if exp, ok := c.idempotency[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.idempotency[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

// Wait blocks until background revalidations finish.
func (c *MemoryCache) Wait() { c.wg.Wait() }
