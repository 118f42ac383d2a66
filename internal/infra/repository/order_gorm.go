package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) first(q *gorm.DB) (model.Order, error) {
	var o model.Order
	err := q.First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", orderID))
}

func (r *OrderGormRepository) FindByToken(ctx context.Context, token string) (model.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("token = ?", token))
}

func (r *OrderGormRepository) LockByID(ctx context.Context, orderID int64) (model.Order, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID))
}

func (r *OrderGormRepository) ExistsByToken(ctx context.Context, token string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Where("token = ?", token).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// token重複はErrConflict
func (r *OrderGormRepository) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repo.ErrConflict
		}
		return err
	}
	return nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus, changedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"status":             status,
			"last_status_change": changedAt,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	//メール/token 部分一致
	if s := strings.TrimSpace(f.Q); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(user_email) LIKE ? OR token LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	switch f.Sort {
	case "created_at":
		q = q.Order("created_at asc").Order("id asc")
	case "status":
		q = q.Order("status asc").Order("id desc")
	default:
		// 新しい順
		q = q.Order("id desc")
	}

	var orders []model.Order
	if err := q.Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&orders).Error; err != nil {
		return []model.Order{}, 0, err
	}
	return orders, total, nil
}

func (r *OrderGormRepository) ListByCompanyID(ctx context.Context, companyID int64) ([]model.Order, error) {
	var orders []model.Order
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id asc").
		Find(&orders).Error; err != nil {
		return []model.Order{}, err
	}
	return orders, nil
}

func (r *OrderGormRepository) CountByUserIDs(ctx context.Context, userIDs []int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		UserID int64
		N      int64
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("user_id, COUNT(*) AS n").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = row.N
	}
	return out, nil
}

type OrderLineGormRepository struct {
	db *gorm.DB
}

func NewOrderLineGormRepository(db *gorm.DB) *OrderLineGormRepository {
	return &OrderLineGormRepository{db: db}
}

func (r *OrderLineGormRepository) Create(ctx context.Context, line *model.OrderLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *OrderLineGormRepository) FindByID(ctx context.Context, lineID int64) (model.OrderLine, error) {
	var l model.OrderLine
	err := r.db.WithContext(ctx).First(&l, lineID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.OrderLine{}, repo.ErrNotFound
	}
	if err != nil {
		return model.OrderLine{}, err
	}
	return l, nil
}

func (r *OrderLineGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	return r.ListByOrderIDs(ctx, []int64{orderID})
}

func (r *OrderLineGormRepository) ListByOrderIDs(ctx context.Context, orderIDs []int64) ([]model.OrderLine, error) {
	var lines []model.OrderLine
	if len(orderIDs) == 0 {
		return lines, nil
	}
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("order_id asc, id asc").
		Find(&lines).Error; err != nil {
		return []model.OrderLine{}, err
	}
	return lines, nil
}

func (r *OrderLineGormRepository) UpdateQuantity(ctx context.Context, lineID int64, quantity int) error {
	res := r.db.WithContext(ctx).Model(&model.OrderLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderLineGormRepository) Delete(ctx context.Context, lineID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.OrderLine{}, lineID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderLineGormRepository) CountByOrderID(ctx context.Context, orderID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.OrderLine{}).Where("order_id = ?", orderID).Count(&n).Error
	return n, err
}

type OrderUserFieldGormRepository struct {
	db *gorm.DB
}

func NewOrderUserFieldGormRepository(db *gorm.DB) *OrderUserFieldGormRepository {
	return &OrderUserFieldGormRepository{db: db}
}

func (r *OrderUserFieldGormRepository) Create(ctx context.Context, entry *model.OrderUserFieldEntry) error {
	return r.db.WithContext(ctx).Omit("UserField").Create(entry).Error
}

func (r *OrderUserFieldGormRepository) ListByOrderIDs(ctx context.Context, orderIDs []int64) ([]model.OrderUserFieldEntry, error) {
	var entries []model.OrderUserFieldEntry
	if len(orderIDs) == 0 {
		return entries, nil
	}
	if err := r.db.WithContext(ctx).
		Preload("UserField").
		Where("order_id IN ?", orderIDs).
		Order("order_id asc, id asc").
		Find(&entries).Error; err != nil {
		return []model.OrderUserFieldEntry{}, err
	}
	return entries, nil
}

type OrderHistoryGormRepository struct {
	db *gorm.DB
}

func NewOrderHistoryGormRepository(db *gorm.DB) *OrderHistoryGormRepository {
	return &OrderHistoryGormRepository{db: db}
}

func (r *OrderHistoryGormRepository) AddHistory(ctx context.Context, entry *model.OrderHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *OrderHistoryGormRepository) ListHistory(ctx context.Context, orderID int64) ([]model.OrderHistoryEntry, error) {
	var entries []model.OrderHistoryEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("date asc, id asc").
		Find(&entries).Error; err != nil {
		return []model.OrderHistoryEntry{}, err
	}
	return entries, nil
}

func (r *OrderHistoryGormRepository) AddNote(ctx context.Context, note *model.OrderNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *OrderHistoryGormRepository) ListNotes(ctx context.Context, orderID int64) ([]model.OrderNote, error) {
	var notes []model.OrderNote
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("date asc, id asc").
		Find(&notes).Error; err != nil {
		return []model.OrderNote{}, err
	}
	return notes, nil
}
