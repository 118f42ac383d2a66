package usecase

import (
	"context"

	"storefront/internal/domain/model"
)

// 在庫オラクル。足りなければ *model.InsufficientStockError を返す
type StockChecker interface {
	CheckQuantity(ctx context.Context, variant model.ProductVariant, quantity int) error
}

// 何も拒否しない（在庫管理なしの既定）
type UnlimitedStock struct{}

func (UnlimitedStock) CheckQuantity(context.Context, model.ProductVariant, int) error {
	return nil
}

// variant.StockQuantityを見る。NULLは管理外なので通す
// 引き当て（予約）はしない
type TrackedStock struct{}

func (TrackedStock) CheckQuantity(_ context.Context, v model.ProductVariant, quantity int) error {
	if v.StockQuantity == nil {
		return nil
	}
	available := *v.StockQuantity
	if available < 0 {
		available = 0
	}
	if quantity > available {
		return &model.InsufficientStockError{VariantID: v.ID, Available: available}
	}
	return nil
}
