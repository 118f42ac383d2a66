package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CheckoutGuard は同じカートの注文確定が同時に走らないようにする。
// DBのtokenユニーク制約が最終防衛線で、こちらは先に弾くだけ
type CheckoutGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCheckoutGuard(rdb *redis.Client, ttl time.Duration) *CheckoutGuard {
	return &CheckoutGuard{rdb: rdb, ttl: ttl}
}

func (g *CheckoutGuard) key(k string) string {
	return "idem:" + k
}

// 取れたらtrue
func (g *CheckoutGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.rdb.SetNX(ctx, g.key(key), "1", g.ttl).Result()
}

func (g *CheckoutGuard) Release(ctx context.Context, key string) {
	_ = g.rdb.Del(ctx, g.key(key)).Err()
}
