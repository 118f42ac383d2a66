package usecase

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/testutil"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =====================
// 実repo（SQLite）で組み立てるテスト環境
// =====================

type testEnv struct {
	db      *gorm.DB
	catalog testutil.Catalog
	clock   *testutil.FixedClock

	tx         *infraRepo.TxManagerGorm
	categories *infraRepo.CategoryGormRepository
	carts      *infraRepo.CartGormRepository
	lines      *infraRepo.CartLineGormRepository
	entries    *infraRepo.CartUserFieldGormRepository
	fields     *infraRepo.UserFieldGormRepository
	products   *infraRepo.ProductGormRepository
	orders     *infraRepo.OrderGormRepository
	olines     *infraRepo.OrderLineGormRepository
	oentries   *infraRepo.OrderUserFieldGormRepository
	history    *infraRepo.OrderHistoryGormRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := testutil.NewDB(t)
	return &testEnv{
		db:         gdb,
		catalog:    testutil.SeedCatalog(t, gdb),
		clock:      &testutil.FixedClock{T: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		tx:         infraRepo.NewTxManagerGorm(gdb),
		categories: infraRepo.NewCategoryGormRepository(gdb),
		carts:      infraRepo.NewCartGormRepository(gdb),
		lines:      infraRepo.NewCartLineGormRepository(gdb),
		entries:    infraRepo.NewCartUserFieldGormRepository(gdb),
		fields:     infraRepo.NewUserFieldGormRepository(gdb),
		products:   infraRepo.NewProductGormRepository(gdb),
		orders:     infraRepo.NewOrderGormRepository(gdb),
		olines:     infraRepo.NewOrderLineGormRepository(gdb),
		oentries:   infraRepo.NewOrderUserFieldGormRepository(gdb),
		history:    infraRepo.NewOrderHistoryGormRepository(gdb),
	}
}

func (e *testEnv) aggregate(stock StockChecker) *CartAggregate {
	return NewCartAggregate(e.carts, e.lines, stock, e.clock)
}

func (e *testEnv) cartUsecase(stock StockChecker) *CartUsecase {
	return NewCartUsecase(e.tx, CartRepos{
		Carts:      e.carts,
		Lines:      e.lines,
		Entries:    e.entries,
		Products:   e.products,
		UserFields: e.fields,
	}, stock, &testutil.SeqIDs{}, e.clock, zap.NewNop())
}

func (e *testEnv) checkoutUsecase(notifier OrderNotifier) *CheckoutUsecase {
	return NewCheckoutUsecase(CheckoutDeps{
		Tx:         e.tx,
		Carts:      e.carts,
		Lines:      e.lines,
		Entries:    e.entries,
		UserFields: e.fields,
		History:    e.history,
		Users:      infraRepo.NewUserGormRepository(e.db),
		Stock:      UnlimitedStock{},
		Notifier:   notifier,
		Clock:      e.clock,
		BaseURL:    "https://shop.example.com",
		Log:        zap.NewNop(),
	})
}

func (e *testEnv) cartLines(t *testing.T, cartID int64) []model.CartLine {
	t.Helper()
	lines, err := e.lines.ListByCartID(context.Background(), cartID)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	return lines
}

// =====================
// OrderNotifier モック
// =====================

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyOrderPlaced(ctx context.Context, msg OrderConfirmation) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

var _ OrderNotifier = (*NotifierMock)(nil)
