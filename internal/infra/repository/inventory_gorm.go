package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) Adjust(ctx context.Context, adj *model.StockAdjustment) error {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "stock_quantity").
		First(&v, adj.VariantID).Error
	if isNotFound(err) {
		return repo.ErrNotFound
	}
	if err != nil {
		return err
	}
	adj.StockBefore = v.StockQuantity

	// nilを書くためにmapで渡す
	if err := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("id = ?", adj.VariantID).
		Updates(map[string]any{"stock_quantity": adj.StockAfter}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(adj).Error
}

func (r *InventoryGormRepository) History(ctx context.Context, variantID int64, limit int) ([]model.StockAdjustment, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []model.StockAdjustment
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
