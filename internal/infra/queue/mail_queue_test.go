package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/infra/mail"
	"storefront/internal/usecase"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newQueue(t *testing.T) (*MailQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewMailQueue(rdb, "mail:test"), mr
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []MailJob
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, template string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, MailJob{To: to, Template: template, Context: data})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestMailQueue_FIFO(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, MailJob{To: "a@example.com", Template: mail.TemplateConfirmOrder}))
	require.NoError(t, q.Enqueue(ctx, MailJob{To: "b@example.com", Template: mail.TemplateConfirmOrder}))

	job, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", job.To)

	job, ok, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b@example.com", job.To)
}

func TestMailQueue_NotifyOrderPlaced(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	err := q.NotifyOrderPlaced(ctx, usecase.OrderConfirmation{
		Email:      "buyer@example.com",
		OrderToken: "tok",
		URL:        "https://shop/orders/tok",
	})
	require.NoError(t, err)

	job, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "buyer@example.com", job.To)
	assert.Equal(t, mail.TemplateConfirmOrder, job.Template)
	assert.Equal(t, "https://shop/orders/tok", job.Context["url"])
}

func TestWorker_RequeuesThenDrops(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()
	m := &fakeMailer{err: errors.New("smtp down")}
	w := NewWorker(q, m, zap.NewNop())

	w.handle(ctx, MailJob{To: "x@example.com", Template: mail.TemplateConfirmOrder})
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, ok, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, job.Attempts)

	// 上限に達したら積み直さない
	job.Attempts = w.maxAttempts - 1
	w.handle(ctx, job)
	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorker_RunSendsAndStops(t *testing.T) {
	q, _ := newQueue(t)
	m := &fakeMailer{}
	w := NewWorker(q, m, zap.NewNop())
	w.poll = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, q.Enqueue(context.Background(), MailJob{To: "a@example.com", Template: mail.TemplateConfirmOrder}))
	assert.Eventually(t, func() bool { return m.count() == 1 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
