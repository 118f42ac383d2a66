// Package testutil builds an in-memory database with the production schema for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/db"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB はテストごとに独立したSQLiteを返す。
// 接続は1本に絞るので、Tx中にTx外のrepoを使うとデッドロックする。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// Catalog はテスト用の会社・商品・バリアント
type Catalog struct {
	Company  model.Category
	Product  model.Product
	VariantA model.ProductVariant
	VariantB model.ProductVariant
}

func SeedCatalog(t *testing.T, gdb *gorm.DB) Catalog {
	t.Helper()

	company := model.Category{Name: "Acme", Slug: "acme"}
	mustCreate(t, gdb, &company)

	product := model.Product{Name: "Office Chair", IsPublished: true, Price: 12900}
	mustCreate(t, gdb, &product)
	if err := gdb.Model(&product).Association("Categories").Append(&company); err != nil {
		t.Fatalf("append category: %v", err)
	}

	a := model.ProductVariant{SKU: "CHAIR-BLK", Name: "Black", ProductID: product.ID}
	b := model.ProductVariant{SKU: "CHAIR-RED", Name: "Red", ProductID: product.ID}
	mustCreate(t, gdb, &a)
	mustCreate(t, gdb, &b)
	a.Product = &product
	b.Product = &product

	return Catalog{Company: company, Product: product, VariantA: a, VariantB: b}
}

func SeedUser(t *testing.T, gdb *gorm.DB, email string, companyID *int64) model.User {
	t.Helper()

	u := model.User{
		Email:        strings.ToLower(email),
		PasswordHash: "x",
		Role:         model.RoleUser,
		IsActive:     true,
		CompanyID:    companyID,
	}
	mustCreate(t, gdb, &u)
	return u
}

func SeedCart(t *testing.T, gdb *gorm.DB, userID *int64) model.Cart {
	t.Helper()

	now := time.Now()
	c := model.Cart{
		Token:            uuid.NewString(),
		UserID:           userID,
		Status:           model.CartStatusOpen,
		CreatedAt:        now,
		LastStatusChange: now,
	}
	mustCreate(t, gdb, &c)
	return c
}

func mustCreate(t *testing.T, gdb *gorm.DB, v any) {
	t.Helper()
	if err := gdb.Omit("Categories", "Product", "Company").Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

// FixedClock は常に同じ時刻を返す
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// SeqIDs は指定したIDを順に返し、尽きたらUUIDを返す
type SeqIDs struct {
	IDs []string
	i   int
}

func (g *SeqIDs) NewID() string {
	if g.i < len(g.IDs) {
		id := g.IDs[g.i]
		g.i++
		return id
	}
	return uuid.NewString()
}
