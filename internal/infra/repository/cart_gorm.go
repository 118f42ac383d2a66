package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

func (r *CartGormRepository) Create(ctx context.Context, cart *model.Cart) error {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repo.ErrConflict
		}
		return err
	}
	return nil
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", cartID))
}

func (r *CartGormRepository) FindOpenAnonymousByToken(ctx context.Context, token string) (model.Cart, error) {
	return r.first(r.db.WithContext(ctx).
		Where("token = ? AND user_id IS NULL AND status = ?", token, model.CartStatusOpen))
}

func (r *CartGormRepository) FindOpenByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	return r.first(r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.CartStatusOpen).
		Order("id desc"))
}

func (r *CartGormRepository) first(q *gorm.DB) (model.Cart, error) {
	var cart model.Cart
	err := q.First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

func (r *CartGormRepository) ListOpenByUserID(ctx context.Context, userID int64) ([]model.Cart, error) {
	var carts []model.Cart
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.CartStatusOpen).
		Order("id desc").
		Find(&carts).Error; err != nil {
		return []model.Cart{}, err
	}
	return carts, nil
}

// ユーザーのOPENカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateOpenByUserID(ctx context.Context, userID int64, token string, now time.Time) (model.Cart, error) {
	var cart model.Cart

	//ユーザー行をロックして探す→無ければ作る
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		findErr := tx.
			Where("user_id = ? AND status = ?", userID, model.CartStatusOpen).
			Order("id desc").
			First(&cart).Error
		if findErr == nil {
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		// 無ければ作る
		uid := userID
		newCart := model.Cart{
			Token:            token,
			UserID:           &uid,
			Status:           model.CartStatusOpen,
			CreatedAt:        now,
			LastStatusChange: now,
		}
		if err := tx.Create(&newCart).Error; err != nil {
			return err
		}
		cart = newCart
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 部分ユニークに負けたら相手のカートを使う
		return r.FindOpenByUserID(ctx, userID)
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

func (r *CartGormRepository) LockOwner(ctx context.Context, userID int64) error {
	return lockUser(r.db.WithContext(ctx), userID)
}

func lockUser(tx *gorm.DB, userID int64) error {
	var u model.User
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", userID).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	return err
}

// carts.statusを更新
func (r *CartGormRepository) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus, changedAt time.Time) error {
	return r.updateColumns(ctx, cartID, map[string]any{
		"status":             status,
		"last_status_change": changedAt,
	})
}

func (r *CartGormRepository) UpdateUser(ctx context.Context, cartID int64, userID int64) error {
	return r.updateColumns(ctx, cartID, map[string]any{"user_id": userID})
}

func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartID int64, quantity int) error {
	return r.updateColumns(ctx, cartID, map[string]any{"quantity": quantity})
}

func (r *CartGormRepository) updateColumns(ctx context.Context, cartID int64, cols map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Updates(cols)

	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return repo.ErrConflict
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartGormRepository) CancelOpenByUserID(ctx context.Context, userID int64, exceptCartID int64, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("user_id = ? AND status = ? AND id <> ?", userID, model.CartStatusOpen, exceptCartID).
		Updates(map[string]any{
			"status":             model.CartStatusCanceled,
			"last_status_change": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// カートを明細・回答ごと削除
func (r *CartGormRepository) Delete(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartUserFieldEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cartID).Delete(&model.CartLine{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&model.Cart{}, cartID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}
