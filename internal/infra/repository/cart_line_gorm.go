package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartLineGormRepository struct {
	db *gorm.DB
}

func NewCartLineGormRepository(db *gorm.DB) *CartLineGormRepository {
	return &CartLineGormRepository{db: db}
}

// カート明細を一覧取得
func (r *CartLineGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartLine, error) {
	var lines []model.CartLine

	if err := r.db.WithContext(ctx).
		Preload("Variant.Product").
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&lines).Error; err != nil {
		return []model.CartLine{}, err
	}

	return lines, nil
}

func (r *CartLineGormRepository) FindByKey(ctx context.Context, cartID int64, variantID int64, data string) (model.CartLine, error) {
	var line model.CartLine

	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND variant_id = ? AND data = ?", cartID, variantID, data).
		First(&line).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartLine{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartLine{}, err
	}
	return line, nil
}

func (r *CartLineGormRepository) Create(ctx context.Context, line *model.CartLine) error {
	if err := r.db.WithContext(ctx).Omit("Variant").Create(line).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repo.ErrConflict
		}
		return err
	}
	return nil
}

// 明細の数量を更新
func (r *CartLineGormRepository) UpdateQuantity(ctx context.Context, lineID int64, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartLineGormRepository) Delete(ctx context.Context, lineID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartLine{}, lineID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartLineGormRepository) SumQuantity(ctx context.Context, cartID int64) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.CartLine{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

type CartUserFieldGormRepository struct {
	db *gorm.DB
}

func NewCartUserFieldGormRepository(db *gorm.DB) *CartUserFieldGormRepository {
	return &CartUserFieldGormRepository{db: db}
}

func (r *CartUserFieldGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartUserFieldEntry, error) {
	var entries []model.CartUserFieldEntry
	if err := r.db.WithContext(ctx).
		Preload("UserField").
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&entries).Error; err != nil {
		return []model.CartUserFieldEntry{}, err
	}
	return entries, nil
}

// (cart_id, user_field_id) が既にあればdataだけ上書き
func (r *CartUserFieldGormRepository) Upsert(ctx context.Context, entry model.CartUserFieldEntry) error {
	entry.UserField = nil
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "user_field_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data"}),
		}).
		Create(&entry).Error
}
