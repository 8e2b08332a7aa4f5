package memstore

import (
	"context"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	"github.com/ariefcatur/go-ecom-orders/internal/orders"
)

// Orders implements orders.Repository.
type Orders struct{ db *DB }

var _ orders.Repository = (*Orders)(nil)

// WithinTx runs fn holding the store lock. State is restored when fn fails.
func (r *Orders) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	snap := r.db.snapshot()
	if err := fn(ctx, txView{r.db}); err != nil {
		r.db.restore(snap)
		return err
	}
	return nil
}

func (r *Orders) List(_ context.Context) ([]orders.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]orders.Order, 0, len(r.db.orders))
	for _, o := range r.db.orders {
		out = append(out, r.db.withProducts(o))
	}
	return out, nil
}

func (r *Orders) GetByCode(_ context.Context, code string) (orders.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.Code == code {
			return r.db.withProducts(o), nil
		}
	}
	return orders.Order{}, orders.ErrOrderNotFound
}

func (r *Orders) DeleteByCode(_ context.Context, code string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, o := range r.db.orders {
		if o.Code == code {
			r.db.orders = append(r.db.orders[:i:i], r.db.orders[i+1:]...)
			return nil
		}
	}
	return orders.ErrOrderNotFound
}

// withProducts attaches the current product name and price to each item.
func (db *DB) withProducts(o orders.Order) orders.Order {
	items := make([]orders.OrderItem, len(o.Items))
	for i, it := range o.Items {
		if p, ok := db.products[it.ProductID]; ok {
			it.Product = catalog.Product{ID: p.ID, Name: p.Name, Price: p.Price}
		}
		items[i] = it
	}
	o.Items = items
	return o
}

// txView runs against DB while WithinTx already holds the lock.
type txView struct{ db *DB }

func (t txView) FindByID(_ context.Context, id int64) (catalog.Product, error) {
	return t.db.findProduct(id)
}

func (t txView) DecrementStock(_ context.Context, id int64, qty int) error {
	return t.db.decrement(id, qty)
}

func (t txView) CreateOrder(_ context.Context, o *orders.Order) error {
	for _, existing := range t.db.orders {
		if existing.Code == o.Code {
			return orders.ErrOrderCodeCollision
		}
	}
	t.db.orderID++
	o.ID = t.db.orderID
	if o.CreatedAt.IsZero() {
		o.CreatedAt = t.db.now()
	}
	for i := range o.Items {
		t.db.itemID++
		o.Items[i].ID = t.db.itemID
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Items = make([]orders.OrderItem, len(o.Items))
	for i, it := range o.Items {
		it.Product = catalog.Product{}
		stored.Items[i] = it
	}
	t.db.orders = append(t.db.orders, stored)
	return nil
}
