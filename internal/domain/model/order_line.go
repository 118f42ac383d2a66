package model

// 注文明細。商品名とSKUは注文時点の値を保存する（商品削除後も残る）
type OrderLine struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64  `gorm:"not null;index" json:"order_id"`
	ProductID   *int64 `gorm:"index" json:"product_id,omitempty"`
	ProductName string `gorm:"type:varchar(128);not null" json:"product_name"`
	ProductSKU  string `gorm:"column:product_sku;type:varchar(32);not null" json:"product_sku"`
	Quantity    int    `gorm:"not null" json:"quantity"`
}

type OrderUserFieldEntry struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64      `gorm:"not null;index" json:"order_id"`
	UserFieldID int64      `gorm:"not null;index" json:"userfield_id"`
	UserField   *UserField `gorm:"foreignKey:UserFieldID" json:"userfield,omitempty"`
	Data        string     `gorm:"type:varchar(128);not null" json:"data"`
}
