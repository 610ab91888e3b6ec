package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/momoworks/momo-ops/internal/port"
)

const (
	cacheKeyPrefix       = "cache:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	revalidateLockTTL    = 30 * time.Second
	revalidateTimeout    = 10 * time.Second
)

// fetchScript reads the namespace version and, under that version, the
// entry and its freshness marker in one round trip.
//
// Returns {version, payload|false, fresh(0|1)}.
var fetchScript = redis.NewScript(`
local version = redis.call('GET', KEYS[1])
if not version then
	version = '0'
end

local base = ARGV[1] .. ':' .. version .. ':' .. ARGV[2]
local payload = redis.call('GET', base)
if not payload then
	return {version, false, 0}
end

local fresh = 0
if redis.call('EXISTS', base .. ':fresh') == 1 then
	fresh = 1
end
return {version, payload, fresh}
`)

// RedisAdapter is the shared stale-while-revalidate cache used by all server
// replicas, plus idempotency keys for write requests.
type RedisAdapter struct {
	client   *redis.Client
	freshTTL time.Duration
	staleTTL time.Duration
	logger   *slog.Logger
}

func NewRedisAdapter(client *redis.Client, freshTTL, staleTTL time.Duration, logger *slog.Logger) *RedisAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisAdapter{client: client, freshTTL: freshTTL, staleTTL: staleTTL, logger: logger}
}

var _ port.CacheRepository = (*RedisAdapter)(nil)

func versionKey(namespace string) string {
	return cacheKeyPrefix + "ver:" + namespace
}

func (r *RedisAdapter) Fetch(ctx context.Context, namespace, key string, load port.Loader) ([]byte, error) {
	res, err := fetchScript.Run(ctx, r.client, []string{versionKey(namespace)},
		cacheKeyPrefix+namespace, key).Slice()
	if err != nil {
		// The cache is an optimization; fall through to the loader.
		r.logger.Warn("cache_read_failed", slog.String("namespace", namespace), slog.Any("err", err))
		return load(ctx)
	}

	version := fmt.Sprint(res[0])
	base := cacheKeyPrefix + namespace + ":" + version + ":" + key

	payload, hit := res[1].(string)
	if !hit {
		data, err := load(ctx)
		if err != nil {
			return nil, err
		}
		r.store(ctx, base, data)
		return data, nil
	}

	if fresh, _ := res[2].(int64); fresh == 0 {
		r.revalidate(ctx, base, load)
	}
	return []byte(payload), nil
}

func (r *RedisAdapter) store(ctx context.Context, base string, data []byte) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, base, data, r.staleTTL)
		pipe.Set(ctx, base+":fresh", 1, r.freshTTL)
		return nil
	})
	if err != nil {
		r.logger.Warn("cache_write_failed", slog.String("key", base), slog.Any("err", err))
	}
}

// revalidate refreshes a stale entry in the background. Only the replica that
// wins the lock reloads.
func (r *RedisAdapter) revalidate(ctx context.Context, base string, load port.Loader) {
	ok, err := r.client.SetNX(ctx, base+":lock", 1, revalidateLockTTL).Result()
	if err != nil || !ok {
		return
	}
	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), revalidateTimeout)
		defer cancel()
		defer r.client.Del(bg, base+":lock")

		data, err := load(bg)
		if err != nil {
			r.logger.Warn("cache_revalidate_failed", slog.String("key", base), slog.Any("err", err))
			return
		}
		r.store(bg, base, data)
	}()
}

func (r *RedisAdapter) Invalidate(ctx context.Context, namespace string) error {
	return r.client.Incr(ctx, versionKey(namespace)).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// Ping reports whether the server is reachable.
func (r *RedisAdapter) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Join(errors.New("redis unavailable"), err)
	}
	return nil
}
