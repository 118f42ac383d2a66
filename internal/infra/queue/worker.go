package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to string, template string, data map[string]string) error
}

// Worker はキューからメールを取り出して送る。
// 失敗したジョブはmaxAttemptsまで積み直し、それ以上は捨ててログに残す
type Worker struct {
	queue       *MailQueue
	mailer      Mailer
	log         *zap.Logger
	maxAttempts int
	poll        time.Duration
	backoff     time.Duration
}

func NewWorker(q *MailQueue, mailer Mailer, log *zap.Logger) *Worker {
	return &Worker{
		queue:       q,
		mailer:      mailer,
		log:         log,
		maxAttempts: 3,
		poll:        2 * time.Second,
		backoff:     time.Second,
	}
}

// Run はctxがキャンセルされるまで回る
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("mail worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info("mail worker stopping")
			return nil
		}

		job, ok, err := w.queue.Dequeue(ctx, w.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("mail queue dequeue", zap.Error(err))
			sleep(ctx, w.backoff)
			continue
		}
		if !ok {
			continue
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job MailJob) {
	err := w.mailer.Send(ctx, job.To, job.Template, job.Context)
	if err == nil {
		w.log.Info("mail sent", zap.String("to", job.To), zap.String("template", job.Template))
		return
	}

	job.Attempts++
	if job.Attempts >= w.maxAttempts {
		w.log.Error("mail dropped",
			zap.String("to", job.To),
			zap.String("template", job.Template),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
		return
	}
	w.log.Warn("mail send failed, requeue", zap.String("to", job.To), zap.Int("attempts", job.Attempts), zap.Error(err))
	if err := w.queue.Enqueue(ctx, job); err != nil {
		w.log.Error("mail requeue", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
