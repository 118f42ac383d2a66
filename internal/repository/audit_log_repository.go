package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// ダッシュボードの操作履歴の絞り込み。ゼロ値は条件なし
type ActivityFilter struct {
	ActorUserID int64
	Resource    model.AuditResourceType
	ResourceID  int64
	Page        int
	Limit       int
}

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	// 新しい順。totalも返す
	List(ctx context.Context, f ActivityFilter) ([]model.AuditLog, int64, error)
}
