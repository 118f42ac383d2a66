package model

import (
	"fmt"
	"time"
)

type CartStatus string

const (
	CartStatusOpen              CartStatus = "OPEN"
	CartStatusSaved             CartStatus = "SAVED"
	CartStatusWaitingForPayment CartStatus = "WAITING_FOR_PAYMENT"
	CartStatusCheckout          CartStatus = "CHECKOUT"
	CartStatusCanceled          CartStatus = "CANCELED"
)

// 許可される遷移。SAVED/CANCELEDは終端
var cartTransitions = map[CartStatus][]CartStatus{
	CartStatusOpen:              {CartStatusCheckout, CartStatusWaitingForPayment, CartStatusSaved, CartStatusCanceled},
	CartStatusCheckout:          {CartStatusOpen, CartStatusWaitingForPayment, CartStatusCanceled},
	CartStatusWaitingForPayment: {CartStatusSaved, CartStatusCanceled},
	CartStatusSaved:             {},
	CartStatusCanceled:          {},
}

func (s CartStatus) Valid() bool {
	_, ok := cartTransitions[s]
	return ok
}

// 遷移できるか。同じステータスはnil（呼び出し側でno-op）
func (s CartStatus) CanTransitionTo(to CartStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q is not a valid cart status", ErrInvalidArgument, to)
	}
	if s == to {
		return nil
	}
	for _, allowed := range cartTransitions[s] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: cart %s -> %s", ErrInvalidTransition, s, to)
}

// 1ユーザーにつきOPENは1つ（carts(user_id) WHERE status='OPEN' の部分ユニーク）
type Cart struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Token            string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"token"`
	UserID           *int64     `gorm:"index" json:"user_id,omitempty"`
	Status           CartStatus `gorm:"type:varchar(32);not null;index;default:'OPEN'" json:"status"`
	Quantity         int        `gorm:"not null;default:0" json:"quantity"`
	CheckoutData     string     `gorm:"type:text" json:"-"`
	CreatedAt        time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	LastStatusChange time.Time  `gorm:"not null" json:"last_status_change"`
}

func (c *Cart) IsAnonymous() bool {
	return c.UserID == nil
}

// メモリ上でステータスを変える。変わったらtrue
func (c *Cart) ChangeStatus(to CartStatus, now time.Time) (bool, error) {
	if err := c.Status.CanTransitionTo(to); err != nil {
		return false, err
	}
	if c.Status == to {
		return false, nil
	}
	c.Status = to
	c.LastStatusChange = now
	return true, nil
}
