package orders

import (
	"context"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
)

// Tx is the view of the stores inside one placement transaction.
// FindByID is expected to lock the product row until the transaction ends.
type Tx interface {
	catalog.StockStore
	// CreateOrder persists o and its items, filling in ids.
	// A duplicate code must yield an error matching ErrOrderCodeCollision.
	CreateOrder(ctx context.Context, o *Order) error
}

type Repository interface {
	// WithinTx commits when fn returns nil and rolls everything back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// List returns orders in insertion order with items and product names loaded.
	List(ctx context.Context) ([]Order, error)
	GetByCode(ctx context.Context, code string) (Order, error)
	// DeleteByCode removes the order and its items in one transaction.
	DeleteByCode(ctx context.Context, code string) error
}
