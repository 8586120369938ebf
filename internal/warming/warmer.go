// Package warming precomputes store analytics on a cron schedule so the first
// dashboard request of the day is served from cache.
package warming

import (
	"context"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storefront-cache/analytics"
)

// Purger removes events older than a cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	// Schedule is a cron spec. Empty disables the scheduled job; WarmOnce can
	// still be called directly.
	Schedule string
	Stores   []string
	Presets  []string
	// Retention enables purging of events older than now-Retention after each
	// run when a Purger is set.
	Retention time.Duration
}

// Report summarizes one warming run.
type Report struct {
	Warmed   int           `json:"warmed"`
	Failed   int           `json:"failed"`
	Purged   int64         `json:"purged"`
	Duration time.Duration `json:"duration"`
}

type Warmer struct {
	service *analytics.Service
	purger  Purger
	cfg     Config
	clock   clockwork.Clock
	logger  logrus.FieldLogger
	cron    *cron.Cron
}

type Option func(*Warmer)

func WithPurger(p Purger) Option {
	return func(w *Warmer) {
		w.purger = p
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(w *Warmer) {
		if clock != nil {
			w.clock = clock
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(w *Warmer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func New(service *analytics.Service, cfg Config, opts ...Option) (*Warmer, error) {
	if service == nil {
		return nil, goerrors.New("warming requires an analytics service", goerrors.CategoryInternal)
	}
	if len(cfg.Presets) == 0 {
		cfg.Presets = []string{"7d", "30d"}
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	w := &Warmer{
		service: service,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	printf := cron.PrintfLogger(w.logger)
	w.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(printf), cron.SkipIfStillRunning(printf)),
	)
	return w, nil
}

// Start registers the job and starts the scheduler. It is a no-op when no
// schedule is configured.
func (w *Warmer) Start() error {
	if w.cfg.Schedule == "" {
		return nil
	}
	_, err := w.cron.AddFunc(w.cfg.Schedule, func() {
		w.Run(context.Background())
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid warming schedule")
	}
	w.cron.Start()
	w.logger.WithFields(logrus.Fields{
		"schedule": w.cfg.Schedule,
		"stores":   len(w.cfg.Stores),
	}).Info("analytics warming scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running job until ctx ends.
func (w *Warmer) Stop(ctx context.Context) error {
	done := w.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run warms every configured store and then purges expired events.
func (w *Warmer) Run(ctx context.Context) Report {
	started := w.clock.Now()
	report := w.WarmOnce(ctx)

	if w.purger != nil && w.cfg.Retention > 0 {
		cutoff := w.clock.Now().Add(-w.cfg.Retention)
		n, err := w.purger.Purge(ctx, cutoff)
		if err != nil {
			w.logger.WithError(err).Warn("event purge failed")
		} else {
			report.Purged = n
		}
	}

	report.Duration = w.clock.Since(started)
	w.logger.WithFields(logrus.Fields{
		"warmed":   report.Warmed,
		"failed":   report.Failed,
		"purged":   report.Purged,
		"duration": report.Duration,
	}).Info("analytics warming complete")
	return report
}

// WarmOnce reads every dashboard query for each store and preset through the
// analytics service. A store that fails is logged and skipped.
func (w *Warmer) WarmOnce(ctx context.Context) Report {
	var report Report
	for _, storeID := range w.cfg.Stores {
		for _, preset := range w.cfg.Presets {
			if ctx.Err() != nil {
				return report
			}
			if err := w.warm(ctx, storeID, preset); err != nil {
				report.Failed++
				w.logger.WithFields(logrus.Fields{
					"store_id": storeID,
					"preset":   preset,
					"error":    err,
				}).Warn("analytics warming failed")
				continue
			}
			report.Warmed++
		}
	}
	return report
}

func (w *Warmer) warm(ctx context.Context, storeID, preset string) error {
	r, err := w.service.Preset(ctx, storeID, preset)
	if err != nil {
		return err
	}

	var failed []string
	check := func(success bool, msg string) {
		if !success {
			failed = append(failed, msg)
		}
	}

	res := w.service.GetStoreAnalytics(ctx, storeID, r)
	check(res.Success, res.Error)
	cmp := w.service.GetComparisonForRange(ctx, storeID, r)
	check(cmp.Success, cmp.Error)
	for _, metric := range []analytics.Metric{analytics.MetricViews, analytics.MetricRevenue} {
		series := w.service.GetTimeSeriesData(ctx, storeID, r.Start, r.End, metric)
		check(series.Success, series.Error)
	}
	byClicks := w.service.GetTopProductsByClicks(ctx, storeID, r.Start, r.End, analytics.DefaultLimit)
	check(byClicks.Success, byClicks.Error)
	byViews := w.service.GetTopProducts(ctx, storeID, r, analytics.DefaultLimit)
	check(byViews.Success, byViews.Error)
	traffic := w.service.GetTrafficSources(ctx, storeID, r, analytics.DefaultLimit)
	check(traffic.Success, traffic.Error)

	if len(failed) > 0 {
		return goerrors.New(failed[0], goerrors.CategoryExternal)
	}
	return nil
}
