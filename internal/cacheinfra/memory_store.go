package cacheinfra

import (
	"context"
	"path"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jonboulle/clockwork"
	"github.com/viccon/sturdyc"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore implements cache.Store in process on a sharded sturdyc client.
// Per-entry expiry is tracked against clock so tests can advance time.
type MemoryStore struct {
	client *sturdyc.Client[memoryEntry]
	clock  clockwork.Clock
	maxTTL time.Duration
}

// NewMemoryStore validates cfg and builds the sturdyc client. A nil clock uses
// the real clock.
func NewMemoryStore(cfg MemoryConfig, clock clockwork.Clock) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[memoryEntry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.MaxTTL,
		cfg.EvictionPercentage,
		opts...,
	)

	return &MemoryStore{client: client, clock: clock, maxTTL: cfg.MaxTTL}, nil
}

func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.client.Get(key)
	if !ok {
		return memoryEntry{}, false
	}
	if !s.clock.Now().Before(entry.expiresAt) {
		s.client.Delete(key)
		return memoryEntry{}, false
	}
	return entry, true
}

// Get returns the payload at key if it has not expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// SetEX overwrites key. TTLs above MaxTTL are capped.
func (s *MemoryStore) SetEX(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.client.Set(key, memoryEntry{value: stored, expiresAt: s.clock.Now().Add(ttl)})
	return nil
}

// Del removes keys and returns how many were live.
func (s *MemoryStore) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, key := range keys {
		if _, ok := s.live(key); ok {
			n++
		}
		s.client.Delete(key)
	}
	return n, nil
}

// Scan pages over the key space ordered by the xxhash of each key. The cursor
// is the hash to resume from, so pages stay consistent while keys from earlier
// pages are deleted. As with Redis, count bounds the keys examined, not the
// keys returned, and a page may be empty while the cursor is non-zero.
func (s *MemoryStore) Scan(_ context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	if count <= 0 {
		count = 10
	}
	if pattern == "" {
		pattern = "*"
	}

	type hashedKey struct {
		key  string
		hash uint64
	}

	all := s.client.ScanKeys()
	candidates := make([]hashedKey, 0, len(all))
	for _, key := range all {
		h := xxhash.Sum64String(key)
		if h < cursor {
			continue
		}
		candidates = append(candidates, hashedKey{key: key, hash: h})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hash == candidates[j].hash {
			return candidates[i].key < candidates[j].key
		}
		return candidates[i].hash < candidates[j].hash
	})

	var (
		keys []string
		next uint64
	)
	for i, c := range candidates {
		if int64(i) == count {
			next = c.hash
			break
		}
		if _, ok := s.live(c.key); !ok {
			continue
		}
		matched, err := path.Match(pattern, c.key)
		if err != nil {
			return nil, 0, err
		}
		if matched {
			keys = append(keys, c.key)
		}
	}
	return keys, next, nil
}

// Len reports the number of entries held, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	return s.client.Size()
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
