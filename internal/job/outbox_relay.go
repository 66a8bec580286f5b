package job

import (
	"context"
	"sync"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// Publisher mq.Producer 满足该接口
type Publisher interface {
	Publish(topic, key, value string) error
}

// OutboxRelay 轮询 outbox 表，把已提交的事件投递到 Kafka。
// 投递是至少一次的，下游按 message key 去重。
type OutboxRelay struct {
	store     repository.OutboxStore
	publisher Publisher
	log       *zap.Logger
	interval  time.Duration
	batchSize int
	maxRetry  int

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewOutboxRelay(store repository.OutboxStore, publisher Publisher, interval time.Duration, batchSize, maxRetry int, lgr *zap.Logger) *OutboxRelay {
	if lgr == nil {
		lgr = zap.NewNop()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		log:       lgr.Named("outbox"),
		interval:  interval,
		batchSize: batchSize,
		maxRetry:  maxRetry,
		stopCh:    make(chan struct{}),
	}
}

// Start 阻塞直到 ctx 取消或调用 Stop
func (r *OutboxRelay) Start(ctx context.Context) {
	r.log.Info("outbox relay started", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped", zap.Error(ctx.Err()))
			return
		case <-r.stopCh:
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.RelayOnce(ctx)
		}
	}
}

func (r *OutboxRelay) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// RelayOnce 投递一批待发送消息，返回成功条数
func (r *OutboxRelay) RelayOnce(ctx context.Context) int {
	messages, err := r.store.GetPendingMessages(ctx, r.batchSize)
	if err != nil {
		r.log.Error("query pending messages failed", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if r.send(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (r *OutboxRelay) send(ctx context.Context, msg *model.OutboxMessage) bool {
	lg := r.log.With(zap.Int64("id", msg.ID), zap.String("topic", msg.Topic), zap.String("key", msg.MessageKey))

	err := r.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := r.store.MarkOutboxSent(ctx, msg.ID); err != nil {
			// 下一轮会重发，下游幂等
			lg.Error("mark sent failed", zap.Error(err))
			return false
		}
		lg.Debug("message relayed")
		return true
	}

	failed := msg.RetryCount+1 >= r.maxRetry
	lg.Warn("publish failed", zap.Int("retry_count", msg.RetryCount+1), zap.Bool("gave_up", failed), zap.Error(err))
	if err := r.store.IncrementRetryCount(ctx, msg.ID, failed); err != nil {
		lg.Error("increment retry count failed", zap.Error(err))
	}
	return false
}
