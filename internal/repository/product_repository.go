package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 一覧検索
type ProductListQuery struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	Published  *bool
	Sort       string
}

// 商品とバリアントの永続化だけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	// categories/variants/imagesをpreload
	FindByID(ctx context.Context, productID int64) (model.Product, error)

	Create(ctx context.Context, p *model.Product, categoryIDs []int64) error
	Update(ctx context.Context, p model.Product, categoryIDs []int64) error
	// order_lines.product_idはNULLにする
	Delete(ctx context.Context, productID int64) error

	// productをpreload
	FindVariantByID(ctx context.Context, variantID int64) (model.ProductVariant, error)
	CreateVariant(ctx context.Context, v *model.ProductVariant) error
}
