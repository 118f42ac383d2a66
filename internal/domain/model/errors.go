package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// 数量が負になる・未知のステータスなど
	ErrInvalidArgument = errors.New("invalid argument")

	// 遷移表にないステータス変更。invalid argument の一種として扱う
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrInvalidArgument)

	// 同じカートトークンの注文が既にある
	ErrDuplicateCheckout = errors.New("order already submitted for this cart")

	// 明細のないカートは注文できない
	ErrEmptyCart = errors.New("cart is empty")
)

// 在庫不足。Availableまでなら入る
type InsufficientStockError struct {
	VariantID int64
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %d (available %d)", e.VariantID, e.Available)
}

// フォーム単位の入力エラー。field名→メッセージ
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
