package model

import "time"

type AuditAction string

const (
	AuditActionCreate      AuditAction = "CREATE"
	AuditActionUpdate      AuditAction = "UPDATE"
	AuditActionDelete      AuditAction = "DELETE"
	AuditActionUpdateStock AuditAction = "UPDATE_STOCK"
)

type AuditResourceType string

const (
	AuditResourceCategory  AuditResourceType = "category"
	AuditResourceUserField AuditResourceType = "userfield"
	AuditResourceProduct   AuditResourceType = "product"
	AuditResourceVariant   AuditResourceType = "variant"
	AuditResourceUser      AuditResourceType = "user"
)

func (r AuditResourceType) Valid() bool {
	switch r {
	case AuditResourceCategory, AuditResourceUserField, AuditResourceProduct, AuditResourceVariant, AuditResourceUser:
		return true
	}
	return false
}

// AuditLog はダッシュボードでのカタログ/スタッフ変更の記録。
// 注文の変更はここではなくOrderHistoryEntryに残す。Before/AfterはJSON文字列（作成時はBeforeが空、削除時はAfterが空）
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(32);not null" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(32);not null;index:idx_audit_resource" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index:idx_audit_resource" json:"resource_id"`
	BeforeJSON   string            `gorm:"type:text" json:"before,omitempty"`
	AfterJSON    string            `gorm:"type:text" json:"after,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}
