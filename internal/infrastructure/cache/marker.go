package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const processedKeyPrefix = "reconcile:processed:"

// ProcessedMarker 记录已经落库的支付通知，重复推送时不必再去抢锁、查库。
// 只是快速路径，最终的幂等由 payment_log 的唯一索引保证。
type ProcessedMarker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProcessedMarker(client *redis.Client, ttl time.Duration) *ProcessedMarker {
	return &ProcessedMarker{client: client, ttl: ttl}
}

func (m *ProcessedMarker) Seen(ctx context.Context, eventKey string) (bool, error) {
	n, err := m.client.Exists(ctx, processedKeyPrefix+eventKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *ProcessedMarker) Mark(ctx context.Context, eventKey string) error {
	return m.client.Set(ctx, processedKeyPrefix+eventKey, 1, m.ttl).Err()
}

// NopMarker Redis 未启用时使用
type NopMarker struct{}

func (NopMarker) Seen(context.Context, string) (bool, error) { return false, nil }

func (NopMarker) Mark(context.Context, string) error { return nil }
