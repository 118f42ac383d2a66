package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type CategoryRepository interface {
	FindByID(ctx context.Context, categoryID int64) (model.Category, error)
	ListRoots(ctx context.Context, page int, limit int) ([]model.Category, int64, error)
	ListChildren(ctx context.Context, parentID int64) ([]model.Category, error)
	// ルート側から順に返す
	Ancestors(ctx context.Context, categoryID int64) ([]model.Category, error)
	Create(ctx context.Context, c *model.Category) error
	Update(ctx context.Context, c model.Category) error
	// 子カテゴリとカスタム項目も消す
	Delete(ctx context.Context, categoryID int64) error
	// カテゴリに属する商品のSKU（sku順）
	ListSKUs(ctx context.Context, categoryID int64) ([]string, error)
}

type UserFieldRepository interface {
	FindByID(ctx context.Context, fieldID int64) (model.UserField, error)
	ListByCompanyID(ctx context.Context, companyID int64) ([]model.UserField, error)
	Create(ctx context.Context, f *model.UserField) error
	Update(ctx context.Context, f model.UserField) error
	Delete(ctx context.Context, fieldID int64) error
}
