package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 属性slug→値。JSONとして保存
type Attributes map[string]string

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Attributes) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("attributes: unsupported type")
	}
	out := Attributes{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*a = out
	return nil
}

type ProductClass struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(128);not null" json:"name"`
	HasVariants bool   `gorm:"not null" json:"has_variants"`
}

type ProductAttribute struct {
	ID      int64                  `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug    string                 `gorm:"type:varchar(50);not null;uniqueIndex" json:"slug"`
	Name    string                 `gorm:"type:varchar(100);not null" json:"name"`
	Choices []AttributeChoiceValue `gorm:"foreignKey:AttributeID" json:"values,omitempty"`
}

type AttributeChoiceValue struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	AttributeID int64  `gorm:"not null;index" json:"attribute_id"`
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	Slug        string `gorm:"type:varchar(100);not null" json:"slug"`
	Color       string `gorm:"type:varchar(7);not null;default:''" json:"color"`
}

// Priceは表示用（最小通貨単位）。計算には使わない
type Product struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductClassID *int64           `gorm:"index" json:"product_class_id,omitempty"`
	Name           string           `gorm:"type:varchar(128);not null" json:"name"`
	Description    string           `gorm:"type:text;not null;default:''" json:"description"`
	Price          int64            `gorm:"not null;default:0" json:"price"`
	Categories     []Category       `gorm:"many2many:product_categories" json:"categories,omitempty"`
	IsPublished    bool             `gorm:"not null;index" json:"is_published"`
	Attributes     Attributes       `gorm:"type:text" json:"attributes"`
	Variants       []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	Images         []ProductImage   `gorm:"foreignKey:ProductID" json:"images,omitempty"`
	UpdatedAt      time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (p Product) Slug() string {
	return Slugify(p.Name)
}

func (p Product) InCategory(categoryID int64) bool {
	for _, c := range p.Categories {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}

type ProductVariant struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SKU        string     `gorm:"column:sku;type:varchar(32);not null;uniqueIndex" json:"sku"`
	Name       string     `gorm:"type:varchar(100);not null;default:''" json:"name"`
	ProductID  int64      `gorm:"not null;index" json:"product_id"`
	Product    *Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Attributes Attributes `gorm:"type:text" json:"attributes"`
	// NULLは在庫を管理しない
	StockQuantity *int `json:"stock_quantity,omitempty"`
}

// 名前 → 属性値 → SKU の順で表示名を決める
func (v ProductVariant) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	if len(v.Attributes) > 0 {
		keys := make([]string, 0, len(v.Attributes))
		for k := range v.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]string, 0, len(keys))
		for _, k := range keys {
			vals = append(vals, v.Attributes[k])
		}
		return strings.Join(vals, ", ")
	}
	return v.SKU
}

func (v ProductVariant) ProductName() string {
	if v.Product == nil {
		return ""
	}
	return v.Product.Name
}

type ProductImage struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64  `gorm:"not null;index" json:"product_id"`
	Image     string `gorm:"type:varchar(255);not null" json:"image"`
	Alt       string `gorm:"type:varchar(128);not null;default:''" json:"alt"`
	Order     int    `gorm:"column:sort_order;not null;default:0" json:"order"`
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// "Café Crème" -> "cafe-creme"
func Slugify(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
