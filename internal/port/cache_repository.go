package port

import "context"

// Loader produces the encoded value for a cache miss or revalidation.
type Loader func(ctx context.Context) ([]byte, error)

type CacheRepository interface {
	// Fetch returns the cached value for namespace/key. A fresh entry is
	// returned as is; a stale entry is returned and refreshed in the
	// background; a miss calls load synchronously and stores the result.
	Fetch(ctx context.Context, namespace, key string, load Loader) ([]byte, error)

	// Invalidate drops every entry of namespace.
	Invalidate(ctx context.Context, namespace string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
