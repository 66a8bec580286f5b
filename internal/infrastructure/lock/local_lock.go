package lock

import (
	"context"
	"sync"
)

// LocalLocker 进程内按订单号加锁，Redis 未启用时使用。多实例部署时只剩数据库行锁生效。
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, orderNo string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[orderNo]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[orderNo] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(orderNo, e)
		return nil, ctx.Err()
	}

	return func() {
		<-e.ch
		l.unref(orderNo, e)
	}, nil
}

func (l *LocalLocker) unref(orderNo string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, orderNo)
	}
}
