package usecase

import "time"

// 時刻はテストで固定できるように外から渡す
type Clock interface {
	Now() time.Time
}

// カートトークン・トラッキングID
type IDGenerator interface {
	NewID() string
}
