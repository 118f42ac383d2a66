package model

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
)

// 一方通行。CANCELLED/SHIPPEDから戻れない
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:       {OrderStatusCancelled, OrderStatusShipped},
	OrderStatusCancelled: {},
	OrderStatusShipped:   {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q is not a valid order status", ErrInvalidArgument, to)
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, s, to)
}

type Order struct {
	ID               int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Status           OrderStatus `gorm:"type:varchar(32);not null;index;default:'NEW'" json:"status"`
	CreatedAt        time.Time   `gorm:"not null;autoCreateTime;index" json:"created_at"`
	LastStatusChange time.Time   `gorm:"not null" json:"last_status_change"`
	UserID           *int64      `gorm:"index" json:"user_id,omitempty"`
	// 注文時点のユーザー所属（CSV出力の単位）
	CompanyID        *int64 `gorm:"index" json:"company_id,omitempty"`
	LanguageCode     string `gorm:"type:varchar(35);not null;default:'en'" json:"language_code"`
	TrackingClientID string `gorm:"type:varchar(36);not null;default:''" json:"tracking_client_id"`
	UserEmail        string `gorm:"type:varchar(254);not null;default:''" json:"user_email"`
	// カートのトークンをそのまま使う
	Token      string `gorm:"type:varchar(36);not null;uniqueIndex" json:"token"`
	EmployeeID string `gorm:"type:varchar(256);not null;default:''" json:"employee_id"`
}

func (o Order) CanCancel() bool {
	return o.Status.CanTransitionTo(OrderStatusCancelled) == nil
}

func (o Order) CanShip() bool {
	return o.Status.CanTransitionTo(OrderStatusShipped) == nil
}

// 明細を触れるのはNEWの間だけ
func (o Order) IsEditable() bool {
	return o.Status == OrderStatusNew
}
