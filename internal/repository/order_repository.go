package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	// メールアドレス or token の部分一致
	Q    string
	Sort string
}

type OrderRepository interface {
	// token重複はErrConflict
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByToken(ctx context.Context, token string) (model.Order, error)
	ExistsByToken(ctx context.Context, token string) (bool, error)
	// SELECT ... FOR UPDATE
	LockByID(ctx context.Context, orderID int64) (model.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus, changedAt time.Time) error

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
	ListByCompanyID(ctx context.Context, companyID int64) ([]model.Order, error)
	CountByUserIDs(ctx context.Context, userIDs []int64) (map[int64]int64, error)
}

type OrderLineRepository interface {
	Create(ctx context.Context, line *model.OrderLine) error
	FindByID(ctx context.Context, lineID int64) (model.OrderLine, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderLine, error)
	ListByOrderIDs(ctx context.Context, orderIDs []int64) ([]model.OrderLine, error)
	UpdateQuantity(ctx context.Context, lineID int64, quantity int) error
	Delete(ctx context.Context, lineID int64) error
	CountByOrderID(ctx context.Context, orderID int64) (int64, error)
}

type OrderUserFieldRepository interface {
	Create(ctx context.Context, entry *model.OrderUserFieldEntry) error
	ListByOrderIDs(ctx context.Context, orderIDs []int64) ([]model.OrderUserFieldEntry, error)
}

// 履歴とメモは追記だけ
type OrderHistoryRepository interface {
	AddHistory(ctx context.Context, entry *model.OrderHistoryEntry) error
	ListHistory(ctx context.Context, orderID int64) ([]model.OrderHistoryEntry, error)
	AddNote(ctx context.Context, note *model.OrderNote) error
	ListNotes(ctx context.Context, orderID int64) ([]model.OrderNote, error)
}
