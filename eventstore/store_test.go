package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/goliatone/go-storefront-cache/analytics"
	"github.com/goliatone/go-storefront-cache/pkg/testsupport"
)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store := New(testsupport.NewSQLiteDB(t))
	require.NoError(t, store.CreateSchema(ctx))

	for _, e := range testsupport.LoadEvents(t, testsupport.FixturePath("events.json")) {
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}
	return store
}

func TestStore_CreateSchemaIsIdempotent(t *testing.T) {
	store := New(testsupport.NewSQLiteDB(t))
	require.NoError(t, store.CreateSchema(context.Background()))
	require.NoError(t, store.CreateSchema(context.Background()))
}

func TestStore_AppendAssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := New(testsupport.NewSQLiteDB(t), WithClock(clockwork.NewFakeClockAt(now)))
	require.NoError(t, store.CreateSchema(ctx))

	saved, err := store.Append(ctx, analytics.Event{
		StoreID: "store-a",
		Type:    analytics.EventPageView,
		Data:    analytics.PageViewPayload{Path: "/"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.True(t, saved.CreatedAt.Equal(now))

	events, err := store.Events(ctx, analytics.EventFilter{StoreID: "store-a"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, saved.ID, events[0].ID)
	assert.Equal(t, analytics.PageViewPayload{Path: "/"}, events[0].Data)
}

func TestStore_AppendRejectsInvalidEvents(t *testing.T) {
	ctx := context.Background()
	store := New(testsupport.NewSQLiteDB(t))
	require.NoError(t, store.CreateSchema(ctx))

	_, err := store.Append(ctx, analytics.Event{
		StoreID: "store-a",
		Type:    analytics.EventPurchase,
		Data:    analytics.PurchasePayload{Revenue: decimal.NewFromInt(-5), Currency: "USD"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, analytics.ErrInvalidPayload)

	_, err = store.Append(ctx, analytics.Event{Type: analytics.EventPageView, Data: analytics.PageViewPayload{}})
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryValidation))

	events, err := store.Events(ctx, analytics.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_EventsFilters(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	may := func(d, h int) time.Time { return time.Date(2024, 5, d, h, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		filter analytics.EventFilter
		want   int
	}{
		{name: "store", filter: analytics.EventFilter{StoreID: "store-a"}, want: 7},
		{name: "other store", filter: analytics.EventFilter{StoreID: "store-b"}, want: 1},
		{name: "range is inclusive", filter: analytics.EventFilter{StoreID: "store-a", Start: may(1, 9), End: time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)}, want: 3},
		{name: "range", filter: analytics.EventFilter{StoreID: "store-a", Start: may(2, 0), End: may(3, 23)}, want: 3},
		{name: "types", filter: analytics.EventFilter{StoreID: "store-a", Types: []analytics.EventType{analytics.EventPageView, analytics.EventPurchase}}, want: 4},
		{name: "product", filter: analytics.EventFilter{StoreID: "store-a", ProductID: "p2"}, want: 3},
		{name: "product and type", filter: analytics.EventFilter{StoreID: "store-a", ProductID: "p1", Types: []analytics.EventType{analytics.EventPurchase}}, want: 1},
		{name: "empty window", filter: analytics.EventFilter{StoreID: "store-a", Start: may(20, 0), End: may(21, 0)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.Events(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, events, tt.want)
			for i := 1; i < len(events); i++ {
				assert.False(t, events[i].CreatedAt.Before(events[i-1].CreatedAt), "events must be ascending")
			}
		})
	}
}

func TestStore_EventsRoundTripsPayloads(t *testing.T) {
	store := newSeededStore(t)

	events, err := store.Events(context.Background(), analytics.EventFilter{
		StoreID: "store-a",
		Types:   []analytics.EventType{analytics.EventPurchase},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "google", events[0].UTMSource)
	assert.Equal(t, "s1", events[0].SessionID)
	assert.True(t, events[0].Revenue().Equal(decimal.RequireFromString("24.90")))
}

func TestStore_FeedsTheAggregator(t *testing.T) {
	store := newSeededStore(t)
	svc := analytics.NewService(analytics.NewAggregator(store), nil)
	ctx := context.Background()
	r := analytics.NewRange(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC))

	rollup := svc.GetStoreAnalytics(ctx, "store-a", r)
	require.True(t, rollup.Success)
	assert.Equal(t, int64(3), rollup.Data.Views)
	assert.Equal(t, int64(2), rollup.Data.Clicks)
	assert.Equal(t, int64(1), rollup.Data.Leads)
	assert.Equal(t, int64(1), rollup.Data.Purchases)
	assert.Equal(t, 24.9, rollup.Data.Revenue)
	assert.Equal(t, int64(4), rollup.Data.UniqueSessions)
	assert.Equal(t, "google", rollup.Data.TopTrafficSource)

	sources := svc.GetTrafficSources(ctx, "store-a", r, 10)
	require.True(t, sources.Success)
	require.Len(t, sources.Data, 4)
	assert.Equal(t, "google", sources.Data[0].Source)

	series := svc.GetTimeSeriesData(ctx, "store-a", r.Start, r.End, analytics.MetricViews)
	require.True(t, series.Success)
	assert.Equal(t, []analytics.TimeSeriesPoint{
		{Date: "2024-05-01", Value: 1},
		{Date: "2024-05-02", Value: 1},
		{Date: "2024-05-04", Value: 1},
	}, series.Data)
}

func TestStore_Purge(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	n, err := store.Purge(ctx, time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	events, err := store.Events(ctx, analytics.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestStore_SkipsUndecodableRows(t *testing.T) {
	store := newSeededStore(t)
	logger, hook := logtest.NewNullLogger()
	store.logger = logger
	ctx := context.Background()

	_, err := store.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("event_data = ?", `{"revenue":"-1","currency":"USD"}`).
		Where("event_type = ?", string(analytics.EventPurchase)).
		Exec(ctx)
	require.NoError(t, err)

	events, err := store.Events(ctx, analytics.EventFilter{StoreID: "store-a"})
	require.NoError(t, err)
	assert.Len(t, events, 6)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "skipping undecodable storefront event", hook.LastEntry().Message)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestStore_QueryFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM "storefront_events"`).WillReturnError(errors.New("connection reset by peer"))

	_, err := store.Events(context.Background(), analytics.EventFilter{StoreID: "store-a"})
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryExternal))
	assert.Contains(t, err.Error(), "query storefront events")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryFailureDegradesAnalytics(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM "storefront_events"`).WillReturnError(errors.New("too many connections"))

	svc := analytics.NewService(analytics.NewAggregator(store), nil)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	res := svc.GetStoreAnalytics(context.Background(), "store-a", analytics.NewRange(start, start.AddDate(0, 0, 7)))

	assert.False(t, res.Success)
	assert.True(t, res.Degraded)
	assert.Equal(t, analytics.Counters{}, res.Data.Counters)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO "storefront_events"`).WillReturnError(errors.New("disk full"))

	_, err := store.Append(context.Background(), analytics.Event{
		StoreID:   "store-a",
		Type:      analytics.EventPageView,
		Data:      analytics.PageViewPayload{},
		CreatedAt: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryExternal))
}
