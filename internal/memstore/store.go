// Package memstore keeps the catalog and orders in process memory.
// All access is serialized by one mutex, so a placement transaction sees
// and leaves a consistent state. It backs STORE_BACKEND=memory and tests.
package memstore

import (
	"sync"
	"time"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	"github.com/ariefcatur/go-ecom-orders/internal/orders"
)

// DB is the shared state behind the Products and Orders views.
type DB struct {
	mu        sync.Mutex
	products  map[int64]catalog.Product
	orders    []orders.Order
	productID int64
	orderID   int64
	itemID    int64
	now       func() time.Time
}

func New() *DB {
	return &DB{products: make(map[int64]catalog.Product), now: time.Now}
}

func (db *DB) Products() *Products { return &Products{db: db} }

func (db *DB) Orders() *Orders { return &Orders{db: db} }

// Seed inserts products as given, assigning ids to those without one.
func (db *DB) Seed(ps ...catalog.Product) []catalog.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]catalog.Product, 0, len(ps))
	for _, p := range ps {
		db.saveProduct(&p)
		out = append(out, p)
	}
	return out
}

// Stock reports the stored quantity and whether the product exists.
func (db *DB) Stock(id int64) (int, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.products[id]
	return p.StockQuantity, ok
}

func (db *DB) OrderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

func (db *DB) findProduct(id int64) (catalog.Product, error) {
	p, ok := db.products[id]
	if !ok {
		return catalog.Product{}, &catalog.ProductNotFoundError{ProductID: id}
	}
	p.ImageData = append([]byte(nil), p.ImageData...)
	return p, nil
}

func (db *DB) decrement(id int64, qty int) error {
	p, ok := db.products[id]
	if !ok {
		return &catalog.ProductNotFoundError{ProductID: id}
	}
	if qty <= 0 || p.StockQuantity < qty {
		return &catalog.InsufficientStockError{ProductID: id, Requested: qty, Available: p.StockQuantity}
	}
	p.StockQuantity -= qty
	p.UpdatedAt = db.now()
	db.products[id] = p
	return nil
}

func (db *DB) saveProduct(p *catalog.Product) {
	now := db.now()
	if p.ID == 0 {
		db.productID++
		p.ID = db.productID
	} else if p.ID > db.productID {
		db.productID = p.ID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	db.products[p.ID] = *p
}

type snapshot struct {
	products                   map[int64]catalog.Product
	orders                     []orders.Order
	productID, orderID, itemID int64
}

func (db *DB) snapshot() snapshot {
	ps := make(map[int64]catalog.Product, len(db.products))
	for id, p := range db.products {
		ps[id] = p
	}
	return snapshot{
		products:  ps,
		orders:    append([]orders.Order(nil), db.orders...),
		productID: db.productID,
		orderID:   db.orderID,
		itemID:    db.itemID,
	}
}

func (db *DB) restore(s snapshot) {
	db.products = s.products
	db.orders = s.orders
	db.productID, db.orderID, db.itemID = s.productID, s.orderID, s.itemID
}
