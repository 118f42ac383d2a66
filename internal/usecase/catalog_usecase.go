package usecase

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// CatalogUsecase はストア側の閲覧（公開商品のみ）。
// 会社に属するユーザーはその会社のカテゴリ配下しか見られない
type CatalogUsecase struct {
	categories repo.CategoryRepository
	products   repo.ProductRepository
}

func NewCatalogUsecase(categories repo.CategoryRepository, products repo.ProductRepository) *CatalogUsecase {
	return &CatalogUsecase{categories: categories, products: products}
}

type CategoryPageOutput struct {
	Category model.Category   `json:"category"`
	Path     string           `json:"path"`
	Children []model.Category `json:"children"`
	Products []model.Product  `json:"products"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

type ProductPageOutput struct {
	Product  model.Product          `json:"product"`
	Variants []ProductVariantOutput `json:"variants"`
}

type ProductVariantOutput struct {
	ID          int64  `json:"id"`
	SKU         string `json:"sku"`
	DisplayName string `json:"display_name"`
	Available   *int   `json:"available,omitempty"`
}

func (u *CatalogUsecase) CategoryProducts(ctx context.Context, categoryID int64, companyID *int64, page, limit int, sort string) (CategoryPageOutput, error) {
	if categoryID <= 0 {
		return CategoryPageOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := checkPaging(page, limit); err != nil {
		return CategoryPageOutput{}, err
	}
	switch sort {
	case "", "name", "-name", "price", "-price":
	default:
		return CategoryPageOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	c, err := u.categories.FindByID(ctx, categoryID)
	if err != nil {
		return CategoryPageOutput{}, toHTTPError(err)
	}
	ancestors, err := u.categories.Ancestors(ctx, categoryID)
	if err != nil {
		return CategoryPageOutput{}, toHTTPError(err)
	}
	if !visibleTo(c, ancestors, companyID) {
		return CategoryPageOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	children, err := u.categories.ListChildren(ctx, categoryID)
	if err != nil {
		return CategoryPageOutput{}, toHTTPError(err)
	}

	published := true
	items, total, err := u.products.List(ctx, repo.ProductListQuery{
		Page:       page,
		Limit:      limit,
		CategoryID: &categoryID,
		Published:  &published,
		Sort:       sort,
	})
	if err != nil {
		return CategoryPageOutput{}, toHTTPError(err)
	}

	return CategoryPageOutput{
		Category: c,
		Path:     c.FullPath(ancestors),
		Children: children,
		Products: items,
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

func (u *CatalogUsecase) ProductDetail(ctx context.Context, productID int64, companyID *int64) (ProductPageOutput, error) {
	if productID <= 0 {
		return ProductPageOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.products.FindByID(ctx, productID)
	if err != nil {
		return ProductPageOutput{}, toHTTPError(err)
	}
	if !p.IsPublished {
		return ProductPageOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if companyID != nil && !u.productVisibleTo(ctx, p, *companyID) {
		return ProductPageOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	out := ProductPageOutput{Product: p, Variants: make([]ProductVariantOutput, 0, len(p.Variants))}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, ProductVariantOutput{
			ID:          v.ID,
			SKU:         v.SKU,
			DisplayName: v.DisplayName(),
			Available:   v.StockQuantity,
		})
	}
	return out, nil
}

// 商品のどれかのカテゴリが会社配下ならOK
func (u *CatalogUsecase) productVisibleTo(ctx context.Context, p model.Product, companyID int64) bool {
	for _, c := range p.Categories {
		if c.ID == companyID {
			return true
		}
		ancestors, err := u.categories.Ancestors(ctx, c.ID)
		if err != nil {
			continue
		}
		if visibleTo(c, ancestors, &companyID) {
			return true
		}
	}
	return false
}

func visibleTo(c model.Category, ancestors []model.Category, companyID *int64) bool {
	if companyID == nil || c.ID == *companyID {
		return true
	}
	for _, a := range ancestors {
		if a.ID == *companyID {
			return true
		}
	}
	return false
}
