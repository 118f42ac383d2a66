package model

import "time"

// StockAdjustment はスタッフが在庫数を書き換えた記録。
// nilの在庫は「管理しない」を表す
type StockAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VariantID   int64     `gorm:"not null;index" json:"variant_id"`
	ActorUserID int64     `gorm:"not null" json:"actor_user_id"`
	StockBefore *int      `json:"stock_before"`
	StockAfter  *int      `json:"stock_after"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
}

func (StockAdjustment) TableName() string {
	return "stock_adjustments"
}

// 管理外からの変更や管理外への変更も含め、数が変わったか
func (a StockAdjustment) Changed() bool {
	switch {
	case a.StockBefore == nil && a.StockAfter == nil:
		return false
	case a.StockBefore == nil || a.StockAfter == nil:
		return true
	default:
		return *a.StockBefore != *a.StockAfter
	}
}
