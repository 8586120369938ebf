package invalidation

import (
	"context"
	"io"
	"net/url"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/sirupsen/logrus"
)

// Kind names a class of write that triggers invalidation.
type Kind string

const (
	KindStore         Kind = "store"
	KindProduct       Kind = "product"
	KindSingleProduct Kind = "single_product"
	KindAnalytics     Kind = "analytics"
)

// DefaultPageSize is the SCAN count used for bulk analytics invalidation.
const DefaultPageSize int64 = 100

// DefaultDashboardProductsPath is the dashboard page listing a store's products.
const DefaultDashboardProductsPath = "/dashboard/products"

// KeyStore is the part of the cache the invalidator needs. *cache.Manager
// satisfies it.
type KeyStore interface {
	Delete(ctx context.Context, keys ...string) (int64, error)
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
}

var _ KeyStore = (*cache.Manager)(nil)

// Target identifies what a write touched. Fields a kind does not need are ignored.
type Target struct {
	StoreID   string `json:"storeId"`
	Slug      string `json:"slug"`
	ProductID string `json:"productId"`
	// Pattern narrows bulk analytics invalidation; empty means every analytics key of the store.
	Pattern string `json:"pattern"`
}

// Failure is a swallowed error from one invalidation step.
type Failure struct {
	Step   string `json:"step"`
	Target string `json:"target"`
	Error  string `json:"error"`
}

// Report summarizes an invalidation run.
type Report struct {
	Kind             Kind      `json:"kind"`
	DeletedKeys      int64     `json:"deletedKeys"`
	RevalidatedPaths []string  `json:"revalidatedPaths,omitempty"`
	RevalidatedTags  []string  `json:"revalidatedTags,omitempty"`
	Failures         []Failure `json:"failures,omitempty"`
}

// OK reports whether every step succeeded.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// plan is the static description of what a write kind touches.
type plan struct {
	keys    []string
	pattern string
	paths   []string
}

// Invalidator deletes dependent cache keys and notifies the rendering layer
// after writes. It holds no per-call state and never returns an error.
type Invalidator struct {
	store         KeyStore
	revalidator   Revalidator
	logger        logrus.FieldLogger
	metrics       *Metrics
	pageSize      int64
	dashboardPath string
}

// Option customizes an Invalidator.
type Option func(*Invalidator)

func WithRevalidator(r Revalidator) Option {
	return func(i *Invalidator) {
		if r != nil {
			i.revalidator = r
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(i *Invalidator) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(i *Invalidator) {
		i.metrics = m
	}
}

// WithPageSize sets the SCAN count. Non-positive values keep the default.
func WithPageSize(n int64) Option {
	return func(i *Invalidator) {
		if n > 0 {
			i.pageSize = n
		}
	}
}

func WithDashboardProductsPath(path string) Option {
	return func(i *Invalidator) {
		if path != "" {
			i.dashboardPath = path
		}
	}
}

// New returns an Invalidator deleting keys from store.
func New(store KeyStore, opts ...Option) *Invalidator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	inv := &Invalidator{
		store:         store,
		revalidator:   NoopRevalidator{},
		logger:        logger,
		pageSize:      DefaultPageSize,
		dashboardPath: DefaultDashboardProductsPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inv)
		}
	}
	return inv
}

// InvalidateStoreCache runs after a store profile change.
func (i *Invalidator) InvalidateStoreCache(ctx context.Context, storeID, slug string) Report {
	return i.Invalidate(ctx, KindStore, Target{StoreID: storeID, Slug: slug})
}

// InvalidateProductCache runs after a product is created, updated, reordered or deleted.
func (i *Invalidator) InvalidateProductCache(ctx context.Context, storeID, slug string) Report {
	return i.Invalidate(ctx, KindProduct, Target{StoreID: storeID, Slug: slug})
}

// InvalidateSingleProduct runs after a single product field is edited.
func (i *Invalidator) InvalidateSingleProduct(ctx context.Context, storeID, slug, productID string) Report {
	return i.Invalidate(ctx, KindSingleProduct, Target{StoreID: storeID, Slug: slug, ProductID: productID})
}

// InvalidateAnalyticsCache deletes every analytics key of storeID, or only the
// ones under pattern when given.
func (i *Invalidator) InvalidateAnalyticsCache(ctx context.Context, storeID string, pattern ...string) Report {
	target := Target{StoreID: storeID}
	if len(pattern) > 0 {
		target.Pattern = pattern[0]
	}
	return i.Invalidate(ctx, KindAnalytics, target)
}

func (i *Invalidator) planFor(kind Kind, t Target) plan {
	var p plan
	storefront := func() {
		if t.Slug != "" {
			p.keys = append(p.keys, cache.StorefrontKey(t.Slug))
			p.paths = append(p.paths, "/"+url.PathEscape(t.Slug))
		}
		if t.StoreID != "" {
			p.keys = append(p.keys, cache.StoreProductsKey(t.StoreID))
		}
	}

	switch kind {
	case KindStore, KindProduct:
		storefront()
		p.paths = append(p.paths, i.dashboardPath)
	case KindSingleProduct:
		if t.ProductID != "" {
			p.keys = append(p.keys, cache.ProductKey(t.ProductID))
		}
		storefront()
	case KindAnalytics:
		if t.StoreID != "" {
			p.pattern = cache.AnalyticsPattern(t.StoreID, t.Pattern)
		}
	}
	return p
}

// Invalidate executes the plan of kind for target. Every failure is logged and
// recorded in the report; the remaining steps still run.
func (i *Invalidator) Invalidate(ctx context.Context, kind Kind, target Target) Report {
	report := Report{Kind: kind}
	logger := i.logger.WithFields(logrus.Fields{
		"kind":     kind,
		"store_id": target.StoreID,
	})

	switch kind {
	case KindStore, KindProduct, KindSingleProduct, KindAnalytics:
	default:
		logger.Warn("unknown invalidation kind")
		report.Failures = append(report.Failures, Failure{Step: "plan", Target: string(kind), Error: "unknown invalidation kind"})
		return report
	}

	p := i.planFor(kind, target)
	i.metrics.invalidation(kind)

	if len(p.keys) > 0 {
		n, err := i.store.Delete(ctx, p.keys...)
		if err != nil {
			i.fail(logger, &report, "delete", p.keys[0], err)
		} else {
			report.DeletedKeys += n
		}
	}

	if p.pattern != "" {
		i.deletePattern(ctx, logger, &report, p.pattern)
	}

	for _, path := range p.paths {
		if err := i.revalidator.RevalidatePath(ctx, path); err != nil {
			i.fail(logger.WithField("path", path), &report, "revalidate_path", path, err)
			continue
		}
		report.RevalidatedPaths = append(report.RevalidatedPaths, path)
	}

	if kind != KindAnalytics {
		for _, tag := range revalidationTagsFromContext(ctx) {
			if err := i.revalidator.RevalidateTag(ctx, tag); err != nil {
				i.fail(logger.WithField("tag", tag), &report, "revalidate_tag", tag, err)
				continue
			}
			report.RevalidatedTags = append(report.RevalidatedTags, tag)
		}
	}

	logger.WithFields(logrus.Fields{
		"deleted":  report.DeletedKeys,
		"paths":    len(report.RevalidatedPaths),
		"failures": len(report.Failures),
	}).Debug("cache invalidated")

	return report
}

// deletePattern scans pattern page by page and deletes each page until the
// cursor returns to zero. A scan failure ends the run; a delete failure only
// skips that page.
func (i *Invalidator) deletePattern(ctx context.Context, logger logrus.FieldLogger, report *Report, pattern string) {
	logger = logger.WithField("pattern", pattern)

	var cursor uint64
	for {
		if err := ctx.Err(); err != nil {
			i.fail(logger, report, "scan", pattern, err)
			return
		}

		keys, next, err := i.store.Scan(ctx, cursor, pattern, i.pageSize)
		if err != nil {
			i.fail(logger, report, "scan", pattern, err)
			return
		}

		if len(keys) > 0 {
			n, err := i.store.Delete(ctx, keys...)
			if err != nil {
				i.fail(logger, report, "delete", pattern, err)
			} else {
				report.DeletedKeys += n
			}
		}

		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (i *Invalidator) fail(logger logrus.FieldLogger, report *Report, step, target string, err error) {
	i.metrics.failure(report.Kind, step)
	logger.WithFields(logrus.Fields{
		"step":  step,
		"error": err,
	}).Error("cache invalidation step failed")
	report.Failures = append(report.Failures, Failure{Step: step, Target: target, Error: err.Error()})
}
