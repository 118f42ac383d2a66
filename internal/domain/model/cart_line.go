package model

import (
	"encoding/json"
	"fmt"
)

const MaxLineQuantity = 999

// cart_lines.data の列長
const MaxLineDataLength = 1024

// カートの明細。(cart, variant, data) でユニーク
type CartLine struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64           `gorm:"not null;uniqueIndex:ux_cart_lines_key,priority:1" json:"cart_id"`
	VariantID int64           `gorm:"not null;uniqueIndex:ux_cart_lines_key,priority:2;index" json:"variant_id"`
	Variant   *ProductVariant `gorm:"foreignKey:VariantID" json:"variant,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	// 正規化したJSON（キー順固定）。未指定は "{}"
	Data string `gorm:"type:varchar(1024);not null;default:'{}';uniqueIndex:ux_cart_lines_key,priority:3" json:"data"`
}

// dataを比較用の正規形にする。nil/空は "{}"
func CanonicalLineData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	// encoding/jsonはmapのキーをソートして出す
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: line data: %v", ErrInvalidArgument, err)
	}
	if len(b) > MaxLineDataLength {
		return "", fmt.Errorf("%w: line data is longer than %d bytes", ErrInvalidArgument, MaxLineDataLength)
	}
	return string(b), nil
}

func (l CartLine) DataMap() map[string]any {
	out := map[string]any{}
	if l.Data == "" {
		return out
	}
	_ = json.Unmarshal([]byte(l.Data), &out)
	return out
}

// カートごとのカスタム項目の回答
type CartUserFieldEntry struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID      int64      `gorm:"not null;uniqueIndex:ux_cart_userfield,priority:1" json:"cart_id"`
	UserFieldID int64      `gorm:"not null;uniqueIndex:ux_cart_userfield,priority:2" json:"userfield_id"`
	UserField   *UserField `gorm:"foreignKey:UserFieldID" json:"userfield,omitempty"`
	Data        string     `gorm:"type:varchar(128);not null" json:"data"`
}

const MaxUserFieldAnswerLength = 128
