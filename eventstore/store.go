// Package eventstore persists the append-only storefront event log with bun
// and serves it to the analytics aggregator.
package eventstore

import (
	"context"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-storefront-cache/analytics"
)

var _ analytics.EventSource = (*Store)(nil)

// Store reads and appends events. It never updates or deletes rows except
// through Purge.
type Store struct {
	db     bun.IDB
	clock  clockwork.Clock
	logger logrus.FieldLogger
}

type Option func(*Store)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(db bun.IDB, opts ...Option) *Store {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := &Store{
		db:     db,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateSchema creates the events table and its lookup index if missing.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*eventRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "create storefront_events table")
	}

	if _, err := s.db.NewCreateIndex().
		Model((*eventRecord)(nil)).
		Index("storefront_events_store_created_idx").
		Column("store_id", "created_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "create storefront_events index")
	}
	return nil
}

// Append validates e and inserts it. A nil ID is generated and a zero
// CreatedAt is set to the store clock.
func (s *Store) Append(ctx context.Context, e analytics.Event) (analytics.Event, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	if err := e.Validate(); err != nil {
		return analytics.Event{}, err
	}

	record, err := newRecord(e)
	if err != nil {
		return analytics.Event{}, err
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return analytics.Event{}, goerrors.Wrap(err, goerrors.CategoryExternal, "insert storefront event")
	}
	return e, nil
}

// Events returns the events matching filter in ascending createdAt order.
// Rows whose data no longer decodes are skipped and logged.
func (s *Store) Events(ctx context.Context, filter analytics.EventFilter) ([]analytics.Event, error) {
	var records []eventRecord

	q := s.db.NewSelect().Model(&records)
	if filter.StoreID != "" {
		q = q.Where("store_id = ?", filter.StoreID)
	}
	if !filter.Start.IsZero() {
		q = q.Where("created_at >= ?", filter.Start.UTC())
	}
	if !filter.End.IsZero() {
		q = q.Where("created_at <= ?", filter.End.UTC())
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		q = q.Where("event_type IN (?)", bun.In(types))
	}
	if filter.ProductID != "" {
		q = q.Where("product_id = ?", filter.ProductID)
	}

	if err := q.Order("created_at ASC", "seq ASC").Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "query storefront events")
	}

	events := make([]analytics.Event, 0, len(records))
	for _, r := range records {
		e, err := r.event()
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"event_id": r.ID,
				"store_id": r.StoreID,
				"error":    err,
			}).Warn("skipping undecodable storefront event")
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Purge deletes events created before cutoff and reports how many were removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*eventRecord)(nil)).
		Where("created_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryExternal, "purge storefront events")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
