package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 订单维度的分布式锁
// ============================================================================
//
// 网关会并发重推同一条通知，也会并发推送同一订单不同阶段的通知。
// 同一订单的 amount_paid / status 是读-改-写，必须串行：
//
//   通知A: 读 paid=0 -> paid=300000
//   通知B: 读 paid=0 -> paid=700000   没有锁时 A 的入账被覆盖
//
// 加锁：SET key value NX PX ttl，value 为持有者的随机标识
// 解锁：Lua 脚本比较 value 后再删除，避免锁过期后删掉别人的锁
//
// 事务内还有 SELECT ... FOR UPDATE 兜底，Redis 锁主要是把并发挡在数据库之外。
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

func OrderLockKey(orderNo string) string {
	return fmt.Sprintf("reconcile:lock:order:%s", orderNo)
}

// RedisLocker 为每次获取生成新的 DistributedLock
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// Acquire 返回的 release 使用独立的 context，请求被取消时锁也能释放
func (r *RedisLocker) Acquire(ctx context.Context, orderNo string) (func(), error) {
	l := NewDistributedLock(r.client, OrderLockKey(orderNo), uuid.NewString(), r.ttl)
	if err := l.Lock(ctx, r.retryInterval, r.maxRetries); err != nil {
		return nil, err
	}
	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Unlock(unlockCtx)
	}, nil
}
