package catalog

import (
	"context"
	"io"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-storefront-cache/analytics"
	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/invalidation"
)

var (
	_ analytics.ProductLookup    = (*Catalog)(nil)
	_ analytics.TimezoneResolver = (*Catalog)(nil)
)

// DefaultTTL is how long catalog reads stay cached.
const DefaultTTL = 10 * time.Minute

// Catalog decorates the store and product repositories. Reads go through the
// cache under the registry keys; writes pass through to the repositories and
// then invalidate what they touched. Invalidation never fails a write.
type Catalog struct {
	stores      repository.Repository[*Store]
	products    repository.Repository[*Product]
	tx          repository.TransactionManager
	cache       *cache.Manager
	invalidator *invalidation.Invalidator
	ttl         time.Duration
	defaultLoc  *time.Location
	clock       clockwork.Clock
	logger      logrus.FieldLogger
}

type Option func(*Catalog)

func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithTransactions runs multi-row writes such as ReorderProducts in a single
// transaction. *bun.DB satisfies repository.TransactionManager.
func WithTransactions(tm repository.TransactionManager) Option {
	return func(c *Catalog) {
		c.tx = tm
	}
}

// WithDefaultLocation sets the location used for stores without a valid timezone.
func WithDefaultLocation(loc *time.Location) Option {
	return func(c *Catalog) {
		if loc != nil {
			c.defaultLoc = loc
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Catalog) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Catalog over the given repositories.
func New(
	stores repository.Repository[*Store],
	products repository.Repository[*Product],
	manager *cache.Manager,
	invalidator *invalidation.Invalidator,
	opts ...Option,
) *Catalog {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &Catalog{
		stores:      stores,
		products:    products,
		cache:       manager,
		invalidator: invalidator,
		ttl:         DefaultTTL,
		defaultLoc:  time.UTC,
		clock:       clockwork.NewRealClock(),
		logger:      logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// StorefrontBySlug returns the public storefront for slug.
func (c *Catalog) StorefrontBySlug(ctx context.Context, slug string) (*Store, error) {
	return cache.GetOrFetch(ctx, c.cache, cache.StorefrontKey(slug), c.ttl, func(ctx context.Context) (*Store, error) {
		return c.stores.GetByIdentifier(ctx, slug)
	})
}

// StoreProfile returns the store with storeID.
func (c *Catalog) StoreProfile(ctx context.Context, storeID string) (*Store, error) {
	return cache.GetOrFetch(ctx, c.cache, cache.StoreProfileKey(storeID), c.ttl, func(ctx context.Context) (*Store, error) {
		return c.stores.GetByID(ctx, storeID)
	})
}

// UserStore returns the store owned by userID.
func (c *Catalog) UserStore(ctx context.Context, userID string) (*Store, error) {
	return cache.GetOrFetch(ctx, c.cache, cache.UserStoreKey(userID), c.ttl, func(ctx context.Context) (*Store, error) {
		return c.stores.Get(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.owner_id = ?", userID)
		})
	})
}

// StoreProducts lists the products of storeID in position order.
func (c *Catalog) StoreProducts(ctx context.Context, storeID string) ([]*Product, error) {
	return cache.GetOrFetch(ctx, c.cache, cache.StoreProductsKey(storeID), c.ttl, func(ctx context.Context) ([]*Product, error) {
		records, _, err := c.products.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.store_id = ?", storeID).Order("position ASC")
		})
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []*Product{}
		}
		return records, nil
	})
}

// Product returns a single product.
func (c *Catalog) Product(ctx context.Context, productID string) (*Product, error) {
	return cache.GetOrFetch(ctx, c.cache, cache.ProductKey(productID), c.ttl, func(ctx context.Context) (*Product, error) {
		return c.products.GetByID(ctx, productID)
	})
}

// CreateStore inserts a store and clears the owner lookup.
func (c *Catalog) CreateStore(ctx context.Context, store *Store) (*Store, error) {
	if store.ID == uuid.Nil {
		store.ID = uuid.New()
	}
	store.UpdatedAt = c.clock.Now()

	created, err := c.stores.Create(ctx, store)
	if err != nil {
		return nil, err
	}
	c.forget(ctx, cache.UserStoreKey(created.OwnerID))
	c.invalidator.InvalidateStoreCache(ctx, created.ID.String(), created.Slug)
	return created, nil
}

// UpdateStoreProfile saves store. When the slug changed, the storefront under
// the old slug is invalidated as well.
func (c *Catalog) UpdateStoreProfile(ctx context.Context, store *Store) (*Store, error) {
	previous, err := c.stores.GetByID(ctx, store.ID.String())
	if err != nil {
		return nil, err
	}

	store.UpdatedAt = c.clock.Now()
	updated, err := c.stores.Update(ctx, store)
	if err != nil {
		return nil, err
	}

	storeID := updated.ID.String()
	c.forget(ctx, cache.StoreProfileKey(storeID), cache.UserStoreKey(updated.OwnerID))
	if previous.OwnerID != updated.OwnerID {
		c.forget(ctx, cache.UserStoreKey(previous.OwnerID))
	}

	c.invalidator.InvalidateStoreCache(ctx, storeID, updated.Slug)
	if previous.Slug != updated.Slug {
		c.invalidator.InvalidateStoreCache(ctx, storeID, previous.Slug)
	}
	return updated, nil
}

// CreateProduct inserts product at the end of its store's listing unless a
// position is set.
func (c *Catalog) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.UpdatedAt = c.clock.Now()

	created, err := c.products.Create(ctx, product)
	if err != nil {
		return nil, err
	}
	c.invalidator.InvalidateProductCache(ctx, created.StoreID.String(), c.slugOf(ctx, created.StoreID))
	return created, nil
}

// UpdateProduct saves product and invalidates it together with its store listing.
func (c *Catalog) UpdateProduct(ctx context.Context, product *Product) (*Product, error) {
	product.UpdatedAt = c.clock.Now()

	updated, err := c.products.Update(ctx, product)
	if err != nil {
		return nil, err
	}
	c.invalidator.InvalidateSingleProduct(ctx, updated.StoreID.String(), c.slugOf(ctx, updated.StoreID), updated.ID.String())
	return updated, nil
}

// DeleteProduct removes product. The listing changes shape, so the store
// level pages are revalidated along with the product key.
func (c *Catalog) DeleteProduct(ctx context.Context, product *Product) error {
	if err := c.products.Delete(ctx, product); err != nil {
		return err
	}
	c.forget(ctx, cache.ProductKey(product.ID.String()))
	c.invalidator.InvalidateProductCache(ctx, product.StoreID.String(), c.slugOf(ctx, product.StoreID))
	return nil
}

// ReorderProducts assigns positions 1..n following the order of productIDs.
// Products of other stores are rejected. With WithTransactions the positions
// are saved atomically; otherwise a failure part way through still
// invalidates, since the rows already saved are visible.
func (c *Catalog) ReorderProducts(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]*Product, error) {
	records := make([]*Product, 0, len(productIDs))
	for _, id := range productIDs {
		p, err := c.products.GetByID(ctx, id.String())
		if err != nil {
			return nil, err
		}
		if p.StoreID != storeID {
			return nil, ErrForeignProduct
		}
		records = append(records, p)
	}

	now := c.clock.Now()
	for i, p := range records {
		p.Position = i + 1
		p.UpdatedAt = now
	}

	if c.tx != nil {
		var updated []*Product
		err := c.tx.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var err error
			updated, err = c.savePositions(ctx, records, func(ctx context.Context, p *Product) (*Product, error) {
				return c.products.UpdateTx(ctx, tx, p)
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		c.invalidator.InvalidateProductCache(ctx, storeID.String(), c.slugOf(ctx, storeID))
		return updated, nil
	}

	updated, err := c.savePositions(ctx, records, func(ctx context.Context, p *Product) (*Product, error) {
		return c.products.Update(ctx, p)
	})
	if len(updated) > 0 || err == nil {
		c.invalidator.InvalidateProductCache(ctx, storeID.String(), c.slugOf(ctx, storeID))
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// savePositions saves records in order and returns the ones written before
// the first failure.
func (c *Catalog) savePositions(ctx context.Context, records []*Product, save func(context.Context, *Product) (*Product, error)) ([]*Product, error) {
	updated := make([]*Product, 0, len(records))
	for _, p := range records {
		saved, err := save(ctx, p)
		if err != nil {
			return updated, err
		}
		updated = append(updated, saved)
	}
	return updated, nil
}

// ProductsByID resolves names and types for analytics rankings of storeID.
// Ids that are not UUIDs, not found or owned by another store are omitted.
func (c *Catalog) ProductsByID(ctx context.Context, storeID string, ids []string) (map[string]analytics.ProductInfo, error) {
	out := make(map[string]analytics.ProductInfo, len(ids))

	owner, err := uuid.Parse(storeID)
	if err != nil {
		return out, nil
	}

	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			parsed = append(parsed, u)
		}
	}
	if len(parsed) == 0 {
		return out, nil
	}

	records, _, err := c.products.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id IN (?)", bun.In(parsed)).
			Where("?TableAlias.store_id = ?", owner)
	})
	if err != nil {
		return nil, err
	}

	for _, p := range records {
		id := p.ID.String()
		out[id] = analytics.ProductInfo{ID: id, Name: p.Name, Type: p.Type}
	}
	return out, nil
}

// StoreLocation resolves the store timezone. Unknown stores and invalid zone
// names fall back to the default location.
func (c *Catalog) StoreLocation(ctx context.Context, storeID string) (*time.Location, error) {
	store, err := c.StoreProfile(ctx, storeID)
	if err != nil || store == nil || store.Timezone == "" {
		return c.defaultLoc, nil
	}
	loc, err := time.LoadLocation(store.Timezone)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"store_id": storeID,
			"timezone": store.Timezone,
			"error":    err,
		}).Warn("invalid store timezone")
		return c.defaultLoc, nil
	}
	return loc, nil
}

// slugOf looks up the slug for invalidation. A failed lookup only skips the
// storefront key and page.
func (c *Catalog) slugOf(ctx context.Context, storeID uuid.UUID) string {
	store, err := c.StoreProfile(ctx, storeID.String())
	if err != nil || store == nil {
		c.logger.WithFields(logrus.Fields{
			"store_id": storeID,
			"error":    err,
		}).Warn("store lookup failed during invalidation")
		return ""
	}
	return store.Slug
}

func (c *Catalog) forget(ctx context.Context, keys ...string) {
	// Manager.Delete counts and logs backend failures itself.
	_, _ = c.cache.Delete(ctx, keys...)
}
