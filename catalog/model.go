package catalog

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Store is a tenant storefront. Slug is its public path segment.
type Store struct {
	bun.BaseModel `bun:"table:stores,alias:st" json:"-" msgpack:"-"`

	ID          uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OwnerID     string    `bun:"owner_id,notnull" json:"ownerId"`
	Slug        string    `bun:"slug,notnull,unique" json:"slug"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description,omitempty"`
	Timezone    string    `bun:"timezone" json:"timezone,omitempty"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updatedAt"`
}

// Product belongs to one store and is listed in Position order.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:pr" json:"-" msgpack:"-"`

	ID        uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	StoreID   uuid.UUID       `bun:"store_id,notnull,type:uuid" json:"storeId"`
	Name      string          `bun:"name,notnull" json:"name"`
	Type      string          `bun:"type,notnull" json:"type"`
	Price     decimal.Decimal `bun:"price,type:numeric" json:"price"`
	Position  int             `bun:"position,notnull" json:"position"`
	Published bool            `bun:"published,notnull" json:"published"`
	UpdatedAt time.Time       `bun:"updated_at,nullzero" json:"updatedAt"`
}

// NewStoreRepository returns a bun repository for stores. Slug is the
// identifier column used by GetByIdentifier.
func NewStoreRepository(db *bun.DB) repository.Repository[*Store] {
	return repository.NewRepository[*Store](db, repository.ModelHandlers[*Store]{
		NewRecord: func() *Store {
			return &Store{}
		},
		GetID: func(record *Store) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Store, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "slug"
		},
	})
}

// NewProductRepository returns a bun repository for products.
func NewProductRepository(db *bun.DB) repository.Repository[*Product] {
	return repository.NewRepository[*Product](db, repository.ModelHandlers[*Product]{
		NewRecord: func() *Product {
			return &Product{}
		},
		GetID: func(record *Product) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Product, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

// CreateSchema creates the stores and products tables if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range []any{(*Store)(nil), (*Product)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	_, err := db.NewCreateIndex().
		Model((*Product)(nil)).
		Index("products_store_position_idx").
		Column("store_id", "position").
		IfNotExists().
		Exec(ctx)
	return err
}
