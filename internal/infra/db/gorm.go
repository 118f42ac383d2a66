package db

import (
	"fmt"

	"storefront/internal/config"
	"storefront/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		// ユニーク違反を gorm.ErrDuplicatedKey に変換する
		TranslateError: true,
		// 削除の連鎖はrepository側でやる（注文の回答は元の項目が消えても残す）
		DisableForeignKeyConstraintWhenMigrating: true,
	}
	if cfg.IsProd() {
		gcfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), gcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return gdb, nil
}

// テーブル作成と、タグで表せないインデックスの作成
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&model.Category{},
		&model.UserField{},
		&model.User{},
		&model.ProductClass{},
		&model.ProductAttribute{},
		&model.AttributeChoiceValue{},
		&model.Product{},
		&model.ProductVariant{},
		&model.ProductImage{},
		&model.StockAdjustment{},
		&model.Cart{},
		&model.CartLine{},
		&model.CartUserFieldEntry{},
		&model.Order{},
		&model.OrderLine{},
		&model.OrderUserFieldEntry{},
		&model.OrderHistoryEntry{},
		&model.OrderNote{},
		&model.AuditLog{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// 1ユーザーにOPENカートは1つ
	if err := gdb.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_carts_user_open ON carts (user_id) WHERE status = 'OPEN'",
	).Error; err != nil {
		return fmt.Errorf("create ux_carts_user_open: %w", err)
	}
	return nil
}
