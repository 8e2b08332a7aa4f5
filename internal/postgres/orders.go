package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ariefcatur/go-ecom-orders/internal/orders"
)

// OrderRepo implements orders.Repository.
type OrderRepo struct{ DB *gorm.DB }

var _ orders.Repository = (*OrderRepo)(nil)

func NewOrderRepo(db *gorm.DB) *OrderRepo { return &OrderRepo{DB: db} }

// WithinTx commits when fn returns nil. Products read through tx stay
// row-locked until then, so concurrent placements on one product serialize.
func (r *OrderRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return r.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(ctx, &txStore{ProductRepo: &ProductRepo{DB: db, lock: true}, db: db})
	})
}

func (r *OrderRepo) List(ctx context.Context) ([]orders.Order, error) {
	var out []orders.Order
	err := withItems(r.DB.WithContext(ctx)).Order("id").Find(&out).Error
	return out, err
}

func (r *OrderRepo) GetByCode(ctx context.Context, code string) (orders.Order, error) {
	var o orders.Order
	err := withItems(r.DB.WithContext(ctx)).Where("code = ?", code).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, err
}

// DeleteByCode relies on ON DELETE CASCADE for the items.
func (r *OrderRepo) DeleteByCode(ctx context.Context, code string) error {
	res := r.DB.WithContext(ctx).Where("code = ?", code).Delete(&orders.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "price") })
}

type txStore struct {
	*ProductRepo
	db *gorm.DB
}

// CreateOrder writes the order row then its items. Product rows are never
// written through the items.
func (t *txStore) CreateOrder(ctx context.Context, o *orders.Order) error {
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return orders.ErrOrderCodeCollision
		}
		return err
	}
	if len(o.Items) == 0 {
		return nil
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	return t.db.WithContext(ctx).Omit(clause.Associations).Create(&o.Items).Error
}
