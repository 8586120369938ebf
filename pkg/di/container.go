package di

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-storefront-cache/analytics"
	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/catalog"
	"github.com/goliatone/go-storefront-cache/eventstore"
	"github.com/goliatone/go-storefront-cache/internal/cacheinfra"
	"github.com/goliatone/go-storefront-cache/internal/config"
	"github.com/goliatone/go-storefront-cache/internal/database"
	"github.com/goliatone/go-storefront-cache/internal/httpapi"
	"github.com/goliatone/go-storefront-cache/internal/logging"
	"github.com/goliatone/go-storefront-cache/internal/warming"
	"github.com/goliatone/go-storefront-cache/invalidation"
)

// Container owns every long-lived component of the storefront core. Each
// component is built once in NewContainer and shared through its getter.
type Container struct {
	config      config.Config
	logger      *logrus.Logger
	clock       clockwork.Clock
	registry    *prometheus.Registry
	db          *bun.DB
	store       cacheinfra.Store
	manager     *cache.Manager
	invalidator *invalidation.Invalidator
	catalog     *catalog.Catalog
	events      *eventstore.Store
	analytics   *analytics.Service
	warmer      *warming.Warmer
	server      *httpapi.Server
}

type options struct {
	logger      *logrus.Logger
	clock       clockwork.Clock
	revalidator invalidation.Revalidator
	httpClient  *http.Client
}

// Option overrides a component NewContainer would otherwise build from config.
type Option func(*options)

func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithRevalidator replaces the webhook revalidator built from config.
func WithRevalidator(r invalidation.Revalidator) Option {
	return func(o *options) {
		o.revalidator = r
	}
}

// WithHTTPClient sets the client used by the webhook revalidator.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// NewContainer opens the database and cache backend named by cfg and wires
// the catalog, event store, analytics service, warmer and HTTP server on top
// of them. Schemas are created when missing.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c := &Container{config: cfg, clock: o.clock, logger: o.logger}
	if c.logger == nil {
		logger, err := logging.New(cfg.Log, nil)
		if err != nil {
			return nil, err
		}
		c.logger = logger
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := c.openBackends(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.wire(ctx, o); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerWithDefaults builds a container from the default configuration:
// in-memory cache and in-memory SQLite.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	cfg, err := config.LoadFrom(map[string]string{})
	if err != nil {
		return nil, err
	}
	cfg.Database = database.DefaultConfig()
	return NewContainer(ctx, cfg, opts...)
}

func (c *Container) openBackends(ctx context.Context) error {
	db, err := database.Open(ctx, c.config.Database)
	if err != nil {
		return err
	}
	c.db = db

	store, err := cacheinfra.Open(ctx, c.config.Cache.ToInfra(), c.clock)
	if err != nil {
		return err
	}
	c.store = store
	return nil
}

func (c *Container) wire(ctx context.Context, o options) error {
	log := c.logger.WithField("component", "cache")

	manager, err := cache.NewManager(c.store, c.config.Cache.ToManager(),
		cache.WithLogger(log),
		cache.WithMetrics(cache.NewMetrics(c.registry)),
	)
	if err != nil {
		return err
	}
	c.manager = manager

	revalidator := o.revalidator
	if revalidator == nil && c.config.Revalidation.Enabled() {
		webhook, err := invalidation.NewWebhookRevalidator(c.config.Revalidation.Webhook(), o.httpClient)
		if err != nil {
			return err
		}
		revalidator = webhook
	}

	invOpts := []invalidation.Option{
		invalidation.WithLogger(c.logger.WithField("component", "invalidation")),
		invalidation.WithMetrics(invalidation.NewMetrics(c.registry)),
		invalidation.WithPageSize(c.config.Cache.ScanPageSize),
		invalidation.WithDashboardProductsPath(c.config.Revalidation.DashboardPath),
	}
	if revalidator != nil {
		invOpts = append(invOpts, invalidation.WithRevalidator(revalidator))
	}
	c.invalidator = invalidation.New(manager, invOpts...)

	if err := catalog.CreateSchema(ctx, c.db); err != nil {
		return err
	}
	c.catalog = catalog.New(
		catalog.NewStoreRepository(c.db),
		catalog.NewProductRepository(c.db),
		manager,
		c.invalidator,
		catalog.WithTransactions(c.db),
		catalog.WithTTL(c.config.Cache.CatalogTTL),
		catalog.WithDefaultLocation(c.config.Analytics.Location()),
		catalog.WithClock(c.clock),
		catalog.WithLogger(c.logger.WithField("component", "catalog")),
	)

	c.events = eventstore.New(c.db,
		eventstore.WithClock(c.clock),
		eventstore.WithLogger(c.logger.WithField("component", "eventstore")),
	)
	if err := c.events.CreateSchema(ctx); err != nil {
		return err
	}

	agg := analytics.NewAggregator(c.events,
		analytics.WithProductLookup(c.catalog),
		analytics.WithTimezoneResolver(c.catalog),
		analytics.WithAggregatorLogger(c.logger.WithField("component", "analytics")),
	)
	c.analytics = analytics.NewService(agg, manager,
		analytics.WithCacheTTL(c.config.Analytics.CacheTTL),
		analytics.WithClock(c.clock),
		analytics.WithLogger(c.logger.WithField("component", "analytics")),
	)

	warmer, err := warming.New(c.analytics, warming.Config{
		Schedule:  c.config.Analytics.WarmSchedule,
		Stores:    c.config.Analytics.WarmStores,
		Presets:   c.config.Analytics.WarmPresets,
		Retention: c.config.Analytics.Retention,
	},
		warming.WithPurger(c.events),
		warming.WithClock(c.clock),
		warming.WithLogger(c.logger.WithField("component", "warming")),
	)
	if err != nil {
		return err
	}
	c.warmer = warmer

	c.server = httpapi.New(httpapi.Deps{
		Analytics:   c.analytics,
		Events:      c.events,
		Cache:       manager,
		Invalidator: c.invalidator,
		Storefronts: c.catalog,
		Gatherer:    c.registry,
		Checks: map[string]httpapi.HealthCheck{
			"cache":    c.store.Ping,
			"database": c.db.PingContext,
		},
	},
		httpapi.WithAdminToken(c.config.HTTP.AdminToken),
		httpapi.WithClock(c.clock),
		httpapi.WithLogger(c.logger.WithField("component", "http")),
	)
	return nil
}

func (c *Container) Config() config.Config                  { return c.config }
func (c *Container) Logger() *logrus.Logger                 { return c.logger }
func (c *Container) Registry() *prometheus.Registry         { return c.registry }
func (c *Container) DB() *bun.DB                            { return c.db }
func (c *Container) CacheManager() *cache.Manager           { return c.manager }
func (c *Container) Invalidator() *invalidation.Invalidator { return c.invalidator }
func (c *Container) Catalog() *catalog.Catalog              { return c.catalog }
func (c *Container) Events() *eventstore.Store              { return c.events }
func (c *Container) Analytics() *analytics.Service          { return c.analytics }
func (c *Container) Warmer() *warming.Warmer                { return c.warmer }

// Handler returns the HTTP surface.
func (c *Container) Handler() http.Handler {
	return c.server
}

// Close stops the warmer and releases the cache backend and the database.
func (c *Container) Close() error {
	var errs []error
	if c.warmer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, c.warmer.Stop(ctx))
		cancel()
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}
