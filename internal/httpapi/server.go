// Package httpapi exposes the analytics queries, event ingestion and cache
// administration over HTTP.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storefront-cache/analytics"
	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/catalog"
	"github.com/goliatone/go-storefront-cache/invalidation"
)

// EventAppender persists storefront events.
type EventAppender interface {
	Append(ctx context.Context, e analytics.Event) (analytics.Event, error)
}

// CacheAdmin exposes the cache counters.
type CacheAdmin interface {
	Stats() cache.Stats
	ResetStats()
}

// Invalidator runs an invalidation plan.
type Invalidator interface {
	Invalidate(ctx context.Context, kind invalidation.Kind, target invalidation.Target) invalidation.Report
}

// Storefronts serves the cached catalog reads.
type Storefronts interface {
	StorefrontBySlug(ctx context.Context, slug string) (*catalog.Store, error)
	StoreProducts(ctx context.Context, storeID string) ([]*catalog.Product, error)
	Product(ctx context.Context, productID string) (*catalog.Product, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the components the server routes to. Nil components leave their
// routes unregistered.
type Deps struct {
	Analytics   *analytics.Service
	Events      EventAppender
	Cache       CacheAdmin
	Invalidator Invalidator
	Storefronts Storefronts
	Gatherer    prometheus.Gatherer
	Checks      map[string]HealthCheck
}

type Server struct {
	deps       Deps
	adminToken string
	maxBody    int64
	clock      clockwork.Clock
	logger     logrus.FieldLogger
	router     *mux.Router
}

type Option func(*Server)

// WithAdminToken requires a bearer token on the admin routes.
func WithAdminToken(token string) Option {
	return func(s *Server) {
		s.adminToken = token
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMaxBodyBytes caps request bodies on the write routes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

func New(deps Deps, opts ...Option) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := &Server{
		deps:    deps,
		maxBody: 64 << 10,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.router.Use(s.logRequests)
	s.RegisterRoutes(s.router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRoutes mounts every route on router.
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()

	if s.deps.Analytics != nil {
		api.HandleFunc("/stores/{storeID}/analytics", s.storeAnalytics).Methods(http.MethodGet)
		stores := api.PathPrefix("/stores/{storeID}/analytics").Subrouter()
		stores.HandleFunc("/timeseries", s.timeSeries).Methods(http.MethodGet)
		stores.HandleFunc("/comparison", s.comparison).Methods(http.MethodGet)
		stores.HandleFunc("/top-products", s.topProducts).Methods(http.MethodGet)
		stores.HandleFunc("/traffic-sources", s.trafficSources).Methods(http.MethodGet)
		stores.HandleFunc("/products/{productID}", s.productAnalytics).Methods(http.MethodGet)
	}

	if s.deps.Events != nil {
		api.HandleFunc("/events", s.ingestEvent).Methods(http.MethodPost)
	}

	if s.deps.Storefronts != nil {
		api.HandleFunc("/storefronts/{slug}", s.storefront).Methods(http.MethodGet)
		api.HandleFunc("/stores/{storeID}/products", s.storeProducts).Methods(http.MethodGet)
		api.HandleFunc("/products/{productID}", s.product).Methods(http.MethodGet)
	}

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	if s.deps.Cache != nil {
		admin.HandleFunc("/cache/stats", s.cacheStats).Methods(http.MethodGet)
		admin.HandleFunc("/cache/stats/reset", s.resetCacheStats).Methods(http.MethodPost)
	}
	if s.deps.Invalidator != nil {
		admin.HandleFunc("/invalidate", s.invalidate).Methods(http.MethodPost)
	}
}

// health handles GET /healthz
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failing := map[string]string{}
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			failing[name] = err.Error()
		}
	}

	if len(failing) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": failing,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
