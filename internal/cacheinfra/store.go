package cacheinfra

import (
	"context"
	"strings"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/jonboulle/clockwork"
)

// Store is a cache.Store that can be health-checked and released.
type Store interface {
	cache.Store
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg Config, clock clockwork.Clock) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendRedis:
		return OpenRedis(ctx, cfg.Redis)
	default:
		return NewMemoryStore(cfg.Memory, clock)
	}
}
