package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// InventoryRepository はバリアント在庫の書き換えと調整履歴。Tx内で使う
type InventoryRepository interface {
	// 行ロックして在庫を書き換え、書き換え前の値を adj.StockBefore に入れて履歴を残す
	Adjust(ctx context.Context, adj *model.StockAdjustment) error
	// 新しい順
	History(ctx context.Context, variantID int64, limit int) ([]model.StockAdjustment, error)
}
