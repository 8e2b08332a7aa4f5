package memstore

import (
	"context"
	"sort"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
)

// Products implements catalog.Store.
type Products struct{ db *DB }

var _ catalog.Store = (*Products)(nil)

func (r *Products) FindByID(_ context.Context, id int64) (catalog.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.findProduct(id)
}

func (r *Products) DecrementStock(_ context.Context, id int64, qty int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.decrement(id, qty)
}

func (r *Products) List(_ context.Context) ([]catalog.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]catalog.Product, 0, len(r.db.products))
	for _, p := range r.db.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Products) Save(_ context.Context, p *catalog.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.ID != 0 {
		if _, ok := r.db.products[p.ID]; !ok {
			return &catalog.ProductNotFoundError{ProductID: p.ID}
		}
	}
	r.db.saveProduct(p)
	return nil
}

func (r *Products) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.products[id]; !ok {
		return &catalog.ProductNotFoundError{ProductID: id}
	}
	for _, o := range r.db.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return catalog.ErrProductInUse
			}
		}
	}
	delete(r.db.products, id)
	return nil
}
