package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type CategoryGormRepository struct {
	db *gorm.DB
}

func NewCategoryGormRepository(db *gorm.DB) *CategoryGormRepository {
	return &CategoryGormRepository{db: db}
}

func (r *CategoryGormRepository) FindByID(ctx context.Context, id int64) (model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).
		Preload("UserFields", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Category{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Category{}, err
	}
	return c, nil
}

// ルート（会社）一覧
func (r *CategoryGormRepository) ListRoots(ctx context.Context, page int, limit int) ([]model.Category, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Category{}).Where("parent_id IS NULL")

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Category{}, 0, err
	}

	var cats []model.Category
	if limit > 0 {
		q = q.Offset((page - 1) * limit).Limit(limit)
	}
	if err := q.Order("name asc").Find(&cats).Error; err != nil {
		return []model.Category{}, 0, err
	}
	return cats, total, nil
}

func (r *CategoryGormRepository) ListChildren(ctx context.Context, parentID int64) ([]model.Category, error) {
	var cats []model.Category
	if err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("name asc").
		Find(&cats).Error; err != nil {
		return []model.Category{}, err
	}
	return cats, nil
}

// 親をたどってルート側から返す
func (r *CategoryGormRepository) Ancestors(ctx context.Context, id int64) ([]model.Category, error) {
	var chain []model.Category
	seen := map[int64]bool{id: true}

	cur, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for cur.ParentID != nil {
		if seen[*cur.ParentID] {
			return nil, errors.New("category tree has a cycle")
		}
		seen[*cur.ParentID] = true

		var parent model.Category
		if err := r.db.WithContext(ctx).First(&parent, *cur.ParentID).Error; err != nil {
			return nil, err
		}
		chain = append([]model.Category{parent}, chain...)
		cur = parent
	}
	return chain, nil
}

func (r *CategoryGormRepository) Create(ctx context.Context, c *model.Category) error {
	return r.db.WithContext(ctx).Omit("Children", "UserFields").Create(c).Error
}

func (r *CategoryGormRepository) Update(ctx context.Context, c model.Category) error {
	res := r.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
		"name":        c.Name,
		"slug":        c.Slug,
		"description": c.Description,
		"prices":      c.Prices,
		"parent_id":   c.ParentID,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 子カテゴリ→カスタム項目→自分の順に消す
func (r *CategoryGormRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteCategoryTree(tx, id, 0)
	})
}

func deleteCategoryTree(tx *gorm.DB, id int64, depth int) error {
	if depth > 32 {
		return errors.New("category tree too deep")
	}

	var childIDs []int64
	if err := tx.Model(&model.Category{}).Where("parent_id = ?", id).Pluck("id", &childIDs).Error; err != nil {
		return err
	}
	for _, cid := range childIDs {
		if err := deleteCategoryTree(tx, cid, depth+1); err != nil {
			return err
		}
	}

	if err := tx.Where("company_id = ?", id).Delete(&model.UserField{}).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM product_categories WHERE category_id = ?", id).Error; err != nil {
		return err
	}

	res := tx.Delete(&model.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CategoryGormRepository) ListSKUs(ctx context.Context, categoryID int64) ([]string, error) {
	var skus []string
	err := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Joins("JOIN product_categories pc ON pc.product_id = product_variants.product_id").
		Where("pc.category_id = ?", categoryID).
		Order("product_variants.sku asc").
		Distinct().
		Pluck("product_variants.sku", &skus).Error
	if err != nil {
		return nil, err
	}
	return skus, nil
}

type UserFieldGormRepository struct {
	db *gorm.DB
}

func NewUserFieldGormRepository(db *gorm.DB) *UserFieldGormRepository {
	return &UserFieldGormRepository{db: db}
}

func (r *UserFieldGormRepository) FindByID(ctx context.Context, id int64) (model.UserField, error) {
	var f model.UserField
	err := r.db.WithContext(ctx).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UserField{}, repo.ErrNotFound
	}
	if err != nil {
		return model.UserField{}, err
	}
	return f, nil
}

func (r *UserFieldGormRepository) ListByCompanyID(ctx context.Context, companyID int64) ([]model.UserField, error) {
	var fields []model.UserField
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id asc").
		Find(&fields).Error; err != nil {
		return []model.UserField{}, err
	}
	return fields, nil
}

func (r *UserFieldGormRepository) Create(ctx context.Context, f *model.UserField) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *UserFieldGormRepository) Update(ctx context.Context, f model.UserField) error {
	res := r.db.WithContext(ctx).Model(&model.UserField{}).Where("id = ?", f.ID).Updates(map[string]interface{}{
		"name":        f.Name,
		"description": f.Description,
		"required":    f.Required,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// カートの回答も消す。注文側の回答は残す
func (r *UserFieldGormRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_field_id = ?", id).Delete(&model.CartUserFieldEntry{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.UserField{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}
