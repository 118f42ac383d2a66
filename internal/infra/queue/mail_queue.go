package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront/internal/infra/mail"
	"storefront/internal/usecase"

	"github.com/redis/go-redis/v9"
)

// MailJob はキューに積む1通分。
type MailJob struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Context  map[string]string `json:"context"`
	Attempts int               `json:"attempts"`
}

// MailQueue はRedisのリスト（LPUSH / BRPOP）。
type MailQueue struct {
	rdb *redis.Client
	key string
}

func NewMailQueue(rdb *redis.Client, key string) *MailQueue {
	return &MailQueue{rdb: rdb, key: key}
}

func (q *MailQueue) Enqueue(ctx context.Context, job MailJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, b).Err()
}

// timeoutまで待つ。何も無ければ ok=false
func (q *MailQueue) Dequeue(ctx context.Context, timeout time.Duration) (MailJob, bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return MailJob{}, false, nil
	}
	if err != nil {
		return MailJob{}, false, err
	}
	// res = [key, value]
	var job MailJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return MailJob{}, false, err
	}
	return job, true, nil
}

func (q *MailQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// 注文確認メールを積む（送信はWorker）
func (q *MailQueue) NotifyOrderPlaced(ctx context.Context, msg usecase.OrderConfirmation) error {
	return q.Enqueue(ctx, MailJob{
		To:       msg.Email,
		Template: mail.TemplateConfirmOrder,
		Context: map[string]string{
			"url":         msg.URL,
			"order_token": msg.OrderToken,
			"language":    msg.Language,
		},
	})
}
