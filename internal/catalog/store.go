package catalog

import "context"

// StockStore is the slice of the catalog that order placement runs against.
// DecrementStock must be atomic per product and must fail with
// *InsufficientStockError instead of clamping.
type StockStore interface {
	FindByID(ctx context.Context, id int64) (Product, error)
	DecrementStock(ctx context.Context, id int64, quantity int) error
}

type Store interface {
	StockStore
	List(ctx context.Context) ([]Product, error)
	// Save inserts when p.ID is zero and updates otherwise.
	Save(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}

// Cache fronts product reads. load is called on a miss.
type Cache interface {
	Fetch(ctx context.Context, id int64, load func(context.Context) (Product, error)) (Product, error)
	Evict(ctx context.Context, ids ...int64) error
}

type noCache struct{}

func (noCache) Fetch(ctx context.Context, _ int64, load func(context.Context) (Product, error)) (Product, error) {
	return load(ctx)
}

func (noCache) Evict(context.Context, ...int64) error { return nil }

// NoCache reads straight through to the store.
var NoCache Cache = noCache{}
