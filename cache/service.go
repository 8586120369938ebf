package cache

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrInvalidResultType is returned when a shared fetch produced a value of a
	// different type than the one the caller asked for.
	ErrInvalidResultType = goerrors.New("cache result has unexpected type", goerrors.CategoryInternal)

	// ErrFetchTimeout is returned to every waiter of a fetch that exceeded the
	// manager's fetch timeout.
	ErrFetchTimeout = goerrors.New("cache fetch timed out", goerrors.CategoryExternal)

	// ErrNilFetchFn is returned when GetOrFetch is called without a fetch function.
	ErrNilFetchFn = goerrors.New("fetch function cannot be nil", goerrors.CategoryBadInput)
)

// Store is the key-value backend the manager reads through. It owns every cache
// entry; the manager never keeps values itself.
//
// Get reports a missing key as (nil, false, nil). Scan follows Redis SCAN
// semantics: iteration starts and ends at cursor 0.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
}

// FetchFn is the function signature GetOrFetch expects when loading from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// GetOrFetch reads key through m. On a hit the cached payload is decoded into T.
// On a miss, or when the backend fails, fetchFn runs at most once across all
// concurrent callers of the same key and its value is written back with ttl.
// A ttl <= 0 uses the manager's default TTL.
//
// Only fetchFn failures (or the caller's own context ending) are returned;
// backend failures are logged and counted.
func GetOrFetch[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, fetchFn FetchFn[T]) (T, error) {
	var zero T
	if fetchFn == nil {
		return zero, ErrNilFetchFn
	}

	if raw, ok := m.lookup(ctx, key); ok {
		var cached T
		err := m.codec.Unmarshal(raw, &cached)
		if err == nil {
			m.recordHit()
			return cached, nil
		}
		m.recordError("decode", key, err)
		m.discard(ctx, key)
	}

	m.recordMiss()

	result, err := m.fetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}

	// A nil interface result is a legitimate zero value for interface and pointer types.
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrInvalidResultType, key, result)
	}
	return typed, nil
}
