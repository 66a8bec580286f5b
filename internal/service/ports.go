package service

import (
	"context"
	"errors"

	"storefront/internal/gateway"
)

var (
	ErrInvalidReferralCode = errors.New("推荐码不存在")
	ErrInvalidOrder        = errors.New("订单参数错误")
	ErrInvalidMission      = errors.New("任务参数错误")
	ErrReviewResolved      = errors.New("复核记录已处理")
	ErrGatewayUnavailable  = errors.New("未配置支付网关")
)

// Locker 订单维度的互斥锁
type Locker interface {
	Acquire(ctx context.Context, orderNo string) (release func(), err error)
}

// ProcessedCache 已处理通知的快速判重
type ProcessedCache interface {
	Seen(ctx context.Context, eventKey string) (bool, error)
	Mark(ctx context.Context, eventKey string) error
}

// StatusChecker 网关交易状态查询
type StatusChecker interface {
	TransactionStatus(ctx context.Context, id string) (*gateway.TransactionState, error)
}
