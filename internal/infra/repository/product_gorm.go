package repository

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 検索/カテゴリ/公開状態/ソート/ページング付きで返す。
func (r *ProductGormRepository) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Product{})

	// q nameを対象
	if s := strings.TrimSpace(q.Q); s != "" {
		tx = tx.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if q.CategoryID != nil {
		tx = tx.Where("id IN (?)", r.db.Table("product_categories").
			Select("product_id").
			Where("category_id = ?", *q.CategoryID))
	}
	if q.Published != nil {
		tx = tx.Where("is_published = ?", *q.Published)
	}

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Product{}, 0, err
	}

	//sort
	switch q.Sort {
	case "name":
		tx = tx.Order("name asc").Order("id asc")
	case "-name":
		tx = tx.Order("name desc").Order("id desc")
	case "price":
		tx = tx.Order("price asc").Order("id asc")
	case "-price":
		tx = tx.Order("price desc").Order("id desc")
	default:
		tx = tx.Order("updated_at desc").Order("id desc")
	}

	if q.Limit > 0 {
		tx = tx.Offset((q.Page - 1) * q.Limit).Limit(q.Limit)
	}
	if err := tx.Preload("Categories").Find(&products).Error; err != nil {
		return []model.Product{}, 0, err
	}

	return products, total, nil
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc, id asc") }).
		First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 商品の作成（バリアントも一緒に）
func (r *ProductGormRepository) Create(ctx context.Context, p *model.Product, categoryIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p.Categories = nil
		if err := tx.Omit("Categories", "Images").Create(p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return repo.ErrConflict
			}
			return err
		}
		return replaceCategories(tx, p, categoryIDs)
	})
}

// 商品の更新
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product, categoryIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"name":             p.Name,
			"description":      p.Description,
			"price":            p.Price,
			"is_published":     p.IsPublished,
			"attributes":       p.Attributes,
			"product_class_id": p.ProductClassID,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return replaceCategories(tx, &p, categoryIDs)
	})
}

func replaceCategories(tx *gorm.DB, p *model.Product, categoryIDs []int64) error {
	cats := []model.Category{}
	if len(categoryIDs) > 0 {
		if err := tx.Where("id IN ?", categoryIDs).Find(&cats).Error; err != nil {
			return err
		}
		if len(cats) != len(categoryIDs) {
			return repo.ErrNotFound
		}
	}
	if err := tx.Model(p).Association("Categories").Replace(cats); err != nil {
		return err
	}
	p.Categories = cats
	return nil
}

// 商品削除。注文明細はproduct_idだけ外して残す
func (r *ProductGormRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.OrderLine{}).
			Where("product_id = ?", id).
			Update("product_id", nil).Error; err != nil {
			return err
		}
		// カートからも外して数量を数え直す
		variantIDs := tx.Model(&model.ProductVariant{}).Select("id").Where("product_id = ?", id)
		var cartIDs []int64
		if err := tx.Model(&model.CartLine{}).Where("variant_id IN (?)", variantIDs).Distinct().Pluck("cart_id", &cartIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("variant_id IN (?)", variantIDs).Delete(&model.CartLine{}).Error; err != nil {
			return err
		}
		if len(cartIDs) > 0 {
			if err := tx.Exec(
				"UPDATE carts SET quantity = (SELECT COALESCE(SUM(quantity), 0) FROM cart_lines WHERE cart_lines.cart_id = carts.id) WHERE id IN ?",
				cartIDs,
			).Error; err != nil {
				return err
			}
		}
		if err := tx.Exec("DELETE FROM product_categories WHERE product_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&model.ProductImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&model.ProductVariant{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&model.Product{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

func (r *ProductGormRepository) FindVariantByID(ctx context.Context, variantID int64) (model.ProductVariant, error) {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).Preload("Product").First(&v, variantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ProductVariant{}, err
	}
	return v, nil
}

func (r *ProductGormRepository) CreateVariant(ctx context.Context, v *model.ProductVariant) error {
	if err := r.db.WithContext(ctx).Omit("Product").Create(v).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repo.ErrConflict
		}
		return err
	}
	return nil
}
