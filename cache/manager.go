package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Manager is a read-through cache over a Store. It holds no entries of its own,
// only the in-flight fetch table and hit/miss/error counters.
type Manager struct {
	store        Store
	codec        Codec
	logger       logrus.FieldLogger
	metrics      *Metrics
	defaultTTL   time.Duration
	fetchTimeout time.Duration

	flights singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for swallowed backend failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics mirrors the manager counters into prometheus collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithCodec overrides the codec resolved from Config.Codec.
func WithCodec(codec Codec) Option {
	return func(m *Manager) {
		if codec != nil {
			m.codec = codec
		}
	}
}

// NewManager validates cfg and returns a Manager reading through store.
func NewManager(store Store, cfg Config, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("cache store cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:        store,
		codec:        codec,
		logger:       discardLogger(),
		defaultTTL:   cfg.DefaultTTL,
		fetchTimeout: cfg.FetchTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// DefaultTTL reports the TTL used for non-positive ttl arguments.
func (m *Manager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// Delete removes keys from the backend and reports how many existed.
func (m *Manager) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := m.store.Del(ctx, keys...)
	if err != nil {
		m.recordError("delete", "", err)
		return 0, err
	}
	return n, nil
}

// Scan walks the backend key space one page at a time.
func (m *Manager) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, next, err := m.store.Scan(ctx, cursor, pattern, count)
	if err != nil {
		m.recordError("scan", pattern, err)
		return nil, 0, err
	}
	return keys, next, nil
}

func (m *Manager) lookup(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.recordError("get", key, err)
		return nil, false
	}
	return raw, ok
}

func (m *Manager) discard(ctx context.Context, key string) {
	if _, err := m.store.Del(ctx, key); err != nil {
		m.recordError("delete", key, err)
	}
}

type fetchResult struct {
	value any
	err   error
}

// fetch runs load at most once per key across concurrent callers. The load is
// detached from the leader's context and bounded by fetchTimeout; each caller
// still stops waiting when its own context ends.
func (m *Manager) fetch(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (any, error)) (any, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	ch := m.flights.DoChan(key, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		fetchCtx, cancel := context.WithTimeout(detached, m.fetchTimeout)
		defer cancel()

		started := time.Now()
		done := make(chan fetchResult, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fetchResult{err: fmt.Errorf("cache fetch for %q panicked: %v", key, r)}
				}
			}()
			value, err := load(fetchCtx)
			done <- fetchResult{value: value, err: err}
		}()

		var res fetchResult
		select {
		case res = <-done:
		case <-fetchCtx.Done():
			res = fetchResult{err: fmt.Errorf("%w after %s: key %q", ErrFetchTimeout, m.fetchTimeout, key)}
		}
		m.metrics.observeFetch(time.Since(started), res.err)

		if res.err != nil {
			return nil, res.err
		}

		m.write(detached, key, ttl, res.value)
		return res.value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) write(ctx context.Context, key string, ttl time.Duration, value any) {
	payload, err := m.codec.Marshal(value)
	if err != nil {
		m.recordError("encode", key, err)
		return
	}
	if err := m.store.SetEX(ctx, key, payload, ttl); err != nil {
		m.recordError("set", key, err)
	}
}

func (m *Manager) recordHit() {
	m.hits.Add(1)
	m.metrics.hit()
}

func (m *Manager) recordMiss() {
	m.misses.Add(1)
	m.metrics.miss()
}

func (m *Manager) recordError(op, key string, err error) {
	m.errors.Add(1)
	m.metrics.error(op)
	m.logger.WithFields(logrus.Fields{
		"op":    op,
		"key":   key,
		"error": err,
	}).Warn("cache backend operation failed")
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
