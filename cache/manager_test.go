package cache

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// mockStore is an in-memory Store with failure toggles.
type mockStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	delErr  error
	scanErr error
	sets    int
}

func newMockStore() *mockStore {
	return &mockStore{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (s *mockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mockStore) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *mockStore) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return 0, s.delErr
	}
	var n int64
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *mockStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, 0, s.scanErr
	}
	var keys []string
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, 0, nil
}

func (s *mockStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func newTestManager(t *testing.T, store Store, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(store, DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}
	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

type product struct {
	ID    string
	Name  string
	Price float64
}

func TestGetOrFetch_MissThenHit(t *testing.T) {
	store := newMockStore()
	m := newTestManager(t, store)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (product, error) {
		calls.Add(1)
		return product{ID: "p1", Name: "Mug", Price: 12.5}, nil
	}

	first, err := GetOrFetch(ctx, m, ProductKey("p1"), time.Minute, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := GetOrFetch(ctx, m, ProductKey("p1"), time.Minute, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Errorf("expected cached value %+v, got %+v", first, second)
	}
	if calls.Load() != 1 {
		t.Errorf("expected fetch to run once, ran %d times", calls.Load())
	}

	stats := m.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Errors != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", stats.HitRate)
	}
}

func TestGetOrFetch_DefaultTTL(t *testing.T) {
	store := newMockStore()
	m := newTestManager(t, store)

	_, err := GetOrFetch(context.Background(), m, "k", 0, func(ctx context.Context) (string, error) {
		return "v", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.ttls["k"]; got != DefaultConfig().DefaultTTL {
		t.Errorf("expected default ttl %v, got %v", DefaultConfig().DefaultTTL, got)
	}
}

func TestGetOrFetch_SingleFlight(t *testing.T) {
	store := newMockStore()
	m := newTestManager(t, store)

	const waiters = 10
	release := make(chan struct{})
	var calls atomic.Int32

	fetch := func(ctx context.Context) (product, error) {
		calls.Add(1)
		<-release
		return product{ID: "p1", Name: "Shared"}, nil
	}

	results := make([]product, waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = GetOrFetch(context.Background(), m, "shared", time.Minute, fetch)
		}(i)
	}

	waitFor(t, func() bool { return m.Stats().Misses == waiters })
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one fetch, got %d", calls.Load())
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Errorf("waiter %d: unexpected error %v", i, errs[i])
		}
		if results[i].Name != "Shared" {
			t.Errorf("waiter %d: expected shared result, got %+v", i, results[i])
		}
	}
	if store.sets != 1 {
		t.Errorf("expected a single cache write, got %d", store.sets)
	}
}

func TestGetOrFetch_ErrorPropagatesAndIsNotCached(t *testing.T) {
	store := newMockStore()
	m := newTestManager(t, store)

	const waiters = 5
	release := make(chan struct{})
	fetchErr := errors.New("upstream down")
	var calls atomic.Int32

	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, fetchErr
	}

	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = GetOrFetch(context.Background(), m, "failing", time.Minute, fetch)
		}(i)
	}

	waitFor(t, func() bool { return m.Stats().Misses == waiters })
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != fetchErr {
			t.Errorf("waiter %d: expected identical fetch error, got %v", i, err)
		}
	}
	if store.has("failing") {
		t.Error("errors must never be cached")
	}

	// The in-flight entry is gone, so the next call fetches again.
	if _, err := GetOrFetch(context.Background(), m, "failing", time.Minute, fetch); err != fetchErr {
		t.Errorf("expected fetch error on retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected second fetch after failure, got %d calls", calls.Load())
	}
}

func TestGetOrFetch_BackendOutageFallsBackToFetch(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")

	logger, hook := logtest.NewNullLogger()
	m := newTestManager(t, store, WithLogger(logger))

	got, err := GetOrFetch(context.Background(), m, "k", time.Minute, func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("backend failure must not surface, got %v", err)
	}
	if got != "fresh" {
		t.Errorf("expected fetched value, got %q", got)
	}

	stats := m.Stats()
	if stats.Errors != 2 {
		t.Errorf("expected 2 backend errors (get and set), got %d", stats.Errors)
	}
	if stats.Misses != 1 {
		t.Errorf("expected the failed read to count as a miss, got %d", stats.Misses)
	}

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Level != logrus.WarnLevel {
			t.Errorf("expected warn level, got %v", entry.Level)
		}
	}
	if op := entries[0].Data["op"]; op != "get" {
		t.Errorf("expected first failure on get, got %v", op)
	}
}

func TestGetOrFetch_CorruptPayloadIsDiscarded(t *testing.T) {
	store := newMockStore()
	store.data["k"] = []byte("{not json")
	m := newTestManager(t, store, WithCodec(JSONCodec()))

	got, err := GetOrFetch(context.Background(), m, "k", time.Minute, func(ctx context.Context) (product, error) {
		return product{ID: "p2"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "p2" {
		t.Errorf("expected refetched value, got %+v", got)
	}
	if string(store.data["k"]) != `{"ID":"p2","Name":"","Price":0}` {
		t.Errorf("expected corrupt entry to be replaced, got %s", store.data["k"])
	}
	if m.Stats().Errors != 1 {
		t.Errorf("expected decode failure to be counted, got %d", m.Stats().Errors)
	}
}

func TestGetOrFetch_FetchTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FetchTimeout = 20 * time.Millisecond
	m, err := NewManager(newMockStore(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	release := make(chan struct{})
	defer close(release)

	_, err = GetOrFetch(context.Background(), m, "slow", time.Minute, func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	})
	if !errors.Is(err, ErrFetchTimeout) {
		t.Errorf("expected ErrFetchTimeout, got %v", err)
	}
}

func TestGetOrFetch_CallerCancelDoesNotFailCoWaiters(t *testing.T) {
	m := newTestManager(t, newMockStore())
	release := make(chan struct{})

	fetch := func(ctx context.Context) (string, error) {
		select {
		case <-release:
			return "value", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := GetOrFetch(leaderCtx, m, "k", time.Minute, fetch)
		leaderErr <- err
	}()
	waitFor(t, func() bool { return m.Stats().Misses == 1 })

	followerDone := make(chan string, 1)
	go func() {
		v, err := GetOrFetch(context.Background(), m, "k", time.Minute, fetch)
		if err != nil {
			t.Errorf("follower: unexpected error %v", err)
		}
		followerDone <- v
	}()
	waitFor(t, func() bool { return m.Stats().Misses == 2 })
	time.Sleep(10 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected leader to observe its own cancellation, got %v", err)
	}

	close(release)
	if v := <-followerDone; v != "value" {
		t.Errorf("expected follower to receive value, got %q", v)
	}
}

func TestGetOrFetch_NilInterfaceResult(t *testing.T) {
	m := newTestManager(t, newMockStore())

	type SomeInterface interface {
		DoSomething() string
	}

	result, err := GetOrFetch(context.Background(), m, "nil-iface", time.Minute, func(ctx context.Context) (SomeInterface, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypedNilPointer(t *testing.T) {
	m := newTestManager(t, newMockStore())

	result, err := GetOrFetch(context.Background(), m, "nil-ptr", time.Minute, func(ctx context.Context) (*string, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypeMismatchOnSharedFetch(t *testing.T) {
	m := newTestManager(t, newMockStore())
	release := make(chan struct{})

	intDone := make(chan error, 1)
	go func() {
		_, err := GetOrFetch(context.Background(), m, "shared", time.Minute, func(ctx context.Context) (int, error) {
			<-release
			return 42, nil
		})
		intDone <- err
	}()
	waitFor(t, func() bool { return m.Stats().Misses == 1 })

	strDone := make(chan error, 1)
	var strResult string
	go func() {
		var err error
		strResult, err = GetOrFetch(context.Background(), m, "shared", time.Minute, func(ctx context.Context) (string, error) {
			return "never", nil
		})
		strDone <- err
	}()
	waitFor(t, func() bool { return m.Stats().Misses == 2 })
	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-intDone; err != nil {
		t.Errorf("expected int caller to succeed, got %v", err)
	}
	if err := <-strDone; !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}
	if strResult != "" {
		t.Errorf("expected zero value but got: %q", strResult)
	}
}

func TestGetOrFetch_NilFetchFn(t *testing.T) {
	m := newTestManager(t, newMockStore())

	if _, err := GetOrFetch[string](context.Background(), m, "k", time.Minute, nil); !errors.Is(err, ErrNilFetchFn) {
		t.Errorf("expected ErrNilFetchFn, got %v", err)
	}
}

func TestManager_ResetStats(t *testing.T) {
	m := newTestManager(t, newMockStore())
	if m.Stats().HitRate != 0 {
		t.Errorf("expected zero hit rate without traffic, got %v", m.Stats().HitRate)
	}

	for i := 0; i < 3; i++ {
		_, _ = GetOrFetch(context.Background(), m, "k", time.Minute, func(ctx context.Context) (int, error) {
			return i, nil
		})
	}
	if m.Stats().Hits != 2 {
		t.Errorf("expected 2 hits, got %d", m.Stats().Hits)
	}

	m.ResetStats()
	if stats := m.Stats(); stats != (Stats{}) {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
}

func TestManager_DeleteAndScan(t *testing.T) {
	store := newMockStore()
	store.data["analytics:s1:a"] = []byte("1")
	store.data["analytics:s1:b"] = []byte("2")
	store.data["analytics:s2:a"] = []byte("3")
	m := newTestManager(t, store)
	ctx := context.Background()

	keys, cursor, err := m.Scan(ctx, 0, AnalyticsPattern("s1"), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != 0 || len(keys) != 2 {
		t.Fatalf("expected 2 keys and final cursor, got %v cursor=%d", keys, cursor)
	}

	n, err := m.Delete(ctx, keys...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deletions, got %d", n)
	}
	if !store.has("analytics:s2:a") {
		t.Error("expected other store's key to survive")
	}

	if n, err := m.Delete(ctx); n != 0 || err != nil {
		t.Errorf("expected no-op delete, got %d %v", n, err)
	}

	store.delErr = errors.New("boom")
	store.scanErr = errors.New("boom")
	if _, err := m.Delete(ctx, "x"); err == nil {
		t.Error("expected delete error to be returned")
	}
	if _, _, err := m.Scan(ctx, 0, "*", 10); err == nil {
		t.Error("expected scan error to be returned")
	}
	if m.Stats().Errors != 2 {
		t.Errorf("expected 2 counted errors, got %d", m.Stats().Errors)
	}
}

func TestManager_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	store := newMockStore()
	m := newTestManager(t, store, WithMetrics(metrics))
	ctx := context.Background()

	fetch := func(ctx context.Context) (string, error) { return "v", nil }
	_, _ = GetOrFetch(ctx, m, "k", time.Minute, fetch)
	_, _ = GetOrFetch(ctx, m, "k", time.Minute, fetch)

	store.getErr = errors.New("down")
	_, _ = GetOrFetch(ctx, m, "k", time.Minute, fetch)

	if got := testutil.ToFloat64(metrics.Hits); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Misses); got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Errors.WithLabelValues("get")); got != 1 {
		t.Errorf("expected 1 get error, got %v", got)
	}
	if count := testutil.CollectAndCount(metrics.FetchDuration); count != 1 {
		t.Errorf("expected one fetch duration series, got %d", count)
	}
}

func TestNewManager_Validation(t *testing.T) {
	if _, err := NewManager(nil, DefaultConfig()); err == nil {
		t.Error("expected error for nil store")
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "json codec", mutate: func(c *Config) { c.Codec = CodecJSON }, wantErr: false},
		{name: "zero ttl", mutate: func(c *Config) { c.DefaultTTL = 0 }, wantErr: true},
		{name: "sub-second ttl", mutate: func(c *Config) { c.DefaultTTL = time.Millisecond }, wantErr: true},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }, wantErr: true},
		{name: "unknown codec", mutate: func(c *Config) { c.Codec = "gob" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewManager(newMockStore(), cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, codec := range []Codec{MsgpackCodec(), JSONCodec()} {
		t.Run(codec.Name(), func(t *testing.T) {
			in := []product{{ID: "a", Name: "Tee", Price: 20}, {ID: "b"}}
			raw, err := codec.Marshal(in)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var out []product
			if err := codec.Unmarshal(raw, &out); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
				t.Errorf("expected %+v, got %+v", in, out)
			}
		})
	}

	if _, err := CodecByName("xml"); err == nil {
		t.Error("expected unknown codec error")
	}
}
