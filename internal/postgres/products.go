package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
)

// ProductRepo implements catalog.Store. Inside a placement transaction
// lock is set and reads take a row lock (SELECT ... FOR UPDATE).
type ProductRepo struct {
	DB   *gorm.DB
	lock bool
}

var _ catalog.Store = (*ProductRepo)(nil)

func NewProductRepo(db *gorm.DB) *ProductRepo { return &ProductRepo{DB: db} }

func (r *ProductRepo) FindByID(ctx context.Context, id int64) (catalog.Product, error) {
	q := r.DB.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"}).Omit("image_data")
	}
	var p catalog.Product
	if err := q.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return catalog.Product{}, &catalog.ProductNotFoundError{ProductID: id}
		}
		return catalog.Product{}, err
	}
	return p, nil
}

// DecrementStock is a conditional update; the row never goes below zero.
func (r *ProductRepo) DecrementStock(ctx context.Context, id int64, qty int) error {
	res := r.DB.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var stock int
	err := r.DB.WithContext(ctx).
		Model(&catalog.Product{}).
		Select("stock_quantity").
		Where("id = ?", id).
		Row().Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return &catalog.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return err
	}
	return &catalog.InsufficientStockError{ProductID: id, Requested: qty, Available: stock}
}

func (r *ProductRepo) List(ctx context.Context) ([]catalog.Product, error) {
	var ps []catalog.Product
	err := r.DB.WithContext(ctx).Omit("image_data").Order("id").Find(&ps).Error
	return ps, err
}

func (r *ProductRepo) Save(ctx context.Context, p *catalog.Product) error {
	if p.ID == 0 {
		return r.DB.WithContext(ctx).Create(p).Error
	}
	res := r.DB.WithContext(ctx).Model(p).Select("*").Omit("id", "created_at").Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &catalog.ProductNotFoundError{ProductID: p.ID}
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	res := r.DB.WithContext(ctx).Delete(&catalog.Product{}, id)
	if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
		return catalog.ErrProductInUse
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &catalog.ProductNotFoundError{ProductID: id}
	}
	return nil
}
