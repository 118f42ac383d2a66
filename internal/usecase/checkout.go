package usecase

import (
	"encoding/json"
	"strings"

	"storefront/internal/domain/model"
)

const (
	// 形が変わったら上げる。違うバージョンの保存内容は捨てる
	CheckoutStorageVersion = "1.0.0"
	// セッション内のキー
	CheckoutStorageKey = "checkout_storage"
)

// セッションに保存するチェックアウトの一時データ
type CheckoutStorage struct {
	Version    string  `json:"version"`
	Email      *string `json:"email,omitempty"`
	EmployeeID *string `json:"employeeid,omitempty"`
}

// Checkout はカートとセッション上の一時データをつなぐ。
// リクエストごとにミドルウェアが作り、modifiedなら保存し直す
type Checkout struct {
	Cart         *model.Cart
	User         *model.User
	TrackingCode string
	LanguageCode string

	storage  CheckoutStorage
	modified bool
}

func NewCheckout(cart *model.Cart, user *model.User, trackingCode, languageCode string) *Checkout {
	return &Checkout{
		Cart:         cart,
		User:         user,
		TrackingCode: trackingCode,
		LanguageCode: languageCode,
		storage:      CheckoutStorage{Version: CheckoutStorageVersion},
	}
}

// 保存済みのJSONから復元する。壊れている/バージョン違いは初期化
func (c *Checkout) LoadStorage(raw []byte) {
	c.storage = CheckoutStorage{Version: CheckoutStorageVersion}
	c.modified = false
	if len(raw) == 0 {
		return
	}

	var s CheckoutStorage
	if err := json.Unmarshal(raw, &s); err != nil {
		return
	}
	if s.Version != CheckoutStorageVersion {
		return
	}
	c.storage = s
}

// セッションに書き戻すJSON
func (c *Checkout) ForStorage() ([]byte, error) {
	return json.Marshal(c.storage)
}

func (c *Checkout) IsModified() bool {
	return c.modified
}

// ログインユーザーはアカウントのメールを使う
func (c *Checkout) Email() string {
	if c.User != nil {
		return c.User.Email
	}
	if c.storage.Email != nil {
		return *c.storage.Email
	}
	return ""
}

func (c *Checkout) SetEmail(email string) {
	email = strings.TrimSpace(email)
	c.storage.Email = &email
	c.modified = true
}

func (c *Checkout) EmployeeID() string {
	if c.storage.EmployeeID != nil {
		return *c.storage.EmployeeID
	}
	return ""
}

func (c *Checkout) SetEmployeeID(id string) {
	id = strings.TrimSpace(id)
	c.storage.EmployeeID = &id
	c.modified = true
}

// 注文確定後に一時データを捨てる
func (c *Checkout) ClearStorage() {
	c.storage = CheckoutStorage{Version: CheckoutStorageVersion}
	c.modified = true
}

func (c *Checkout) IsCleared() bool {
	return c.storage.Email == nil && c.storage.EmployeeID == nil
}

func (c *Checkout) UserID() *int64 {
	if c.User == nil {
		return nil
	}
	id := c.User.ID
	return &id
}

func (c *Checkout) CompanyID() *int64 {
	if c.User == nil {
		return nil
	}
	return c.User.CompanyID
}
