package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type CartRepository interface {
	Create(ctx context.Context, cart *model.Cart) error
	FindByID(ctx context.Context, cartID int64) (model.Cart, error)
	// userのいないOPENカート
	FindOpenAnonymousByToken(ctx context.Context, token string) (model.Cart, error)
	// 一番新しいOPENカート
	FindOpenByUserID(ctx context.Context, userID int64) (model.Cart, error)
	ListOpenByUserID(ctx context.Context, userID int64) ([]model.Cart, error)
	// 無ければtokenで作る
	GetOrCreateOpenByUserID(ctx context.Context, userID int64, token string, now time.Time) (model.Cart, error)

	// userの行をロックして同じuserのカート操作を直列化する
	LockOwner(ctx context.Context, userID int64) error

	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus, changedAt time.Time) error
	UpdateUser(ctx context.Context, cartID int64, userID int64) error
	UpdateQuantity(ctx context.Context, cartID int64, quantity int) error
	// exceptCartID以外のOPENカートをCANCELEDにする
	CancelOpenByUserID(ctx context.Context, userID int64, exceptCartID int64, now time.Time) (int64, error)

	// 明細・回答ごと削除
	Delete(ctx context.Context, cartID int64) error
}

type CartLineRepository interface {
	// variantとproductをpreloadして返す（id順）
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartLine, error)
	FindByKey(ctx context.Context, cartID int64, variantID int64, data string) (model.CartLine, error)
	Create(ctx context.Context, line *model.CartLine) error
	UpdateQuantity(ctx context.Context, lineID int64, quantity int) error
	Delete(ctx context.Context, lineID int64) error
	// 明細なしは0
	SumQuantity(ctx context.Context, cartID int64) (int, error)
}

type CartUserFieldRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartUserFieldEntry, error)
	// (cart, field) があれば上書き
	Upsert(ctx context.Context, entry model.CartUserFieldEntry) error
}
