package model

import "time"

// 追記のみ。更新・削除はしない
type OrderHistoryEntry struct {
	ID      int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64       `gorm:"not null;index" json:"order_id"`
	Date    time.Time   `gorm:"not null" json:"date"`
	Status  OrderStatus `gorm:"type:varchar(32);not null" json:"status"`
	Comment string      `gorm:"type:varchar(1000);not null;default:''" json:"comment"`
	UserID  *int64      `gorm:"index" json:"user_id,omitempty"`
}

const MaxOrderNoteLength = 250

type OrderNote struct {
	ID      int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64     `gorm:"not null;index" json:"order_id"`
	UserID  *int64    `gorm:"index" json:"user_id,omitempty"`
	Date    time.Time `gorm:"not null" json:"date"`
	Content string    `gorm:"type:varchar(250);not null" json:"content"`
}
