package model

import "strings"

// カテゴリ。ユーザーとカスタム項目の「会社」も兼ねる
type Category struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string      `gorm:"type:varchar(128);not null" json:"name"`
	Slug        string      `gorm:"type:varchar(50);not null;index" json:"slug"`
	Description string      `gorm:"type:text;not null;default:''" json:"description"`
	Prices      bool        `gorm:"not null" json:"prices"`
	ParentID    *int64      `gorm:"index" json:"parent_id,omitempty"`
	Children    []Category  `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	UserFields  []UserField `gorm:"foreignKey:CompanyID" json:"userfields,omitempty"`
}

// ルートから自分までのslugを "/" でつなぐ。ancestorsはルート側から並べる
func (c Category) FullPath(ancestors []Category) string {
	parts := make([]string, 0, len(ancestors)+1)
	for _, a := range ancestors {
		parts = append(parts, a.Slug)
	}
	parts = append(parts, c.Slug)
	return strings.Join(parts, "/")
}

// 会社ごとのカスタム項目
type UserField struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(128);not null" json:"name"`
	Description string `gorm:"type:text;not null;default:''" json:"description"`
	CompanyID   int64  `gorm:"not null;index" json:"company_id"`
	Required    bool   `gorm:"not null" json:"required"`
}
