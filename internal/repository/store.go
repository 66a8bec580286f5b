package repository

import (
	"context"
	"errors"

	"storefront/internal/model"
)

var (
	ErrOrderNotFound       = errors.New("订单不存在")
	ErrOrderStatusInvalid  = errors.New("订单状态不合法")
	ErrDuplicateEvent      = errors.New("重复的支付通知")
	ErrUserNotFound        = errors.New("用户不存在")
	ErrStatisticsNotFound  = errors.New("用户统计不存在")
	ErrUserMissionNotFound = errors.New("用户任务不存在")
	ErrReviewNotFound      = errors.New("复核记录不存在")
	ErrDuplicateKey        = errors.New("唯一键冲突")
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	// GetOrder 带商品和支付流水
	GetOrder(ctx context.Context, orderNo string) (*model.Order, error)
	// LockOrder 在事务内对订单行加排他锁，停用的订单视为不存在
	LockOrder(ctx context.Context, orderNo string) (*model.Order, error)
	SaveOrderPayment(ctx context.Context, order *model.Order) error
	UpdateOrderStatus(ctx context.Context, orderNo, fromStatus, toStatus string) error
	DisableOrder(ctx context.Context, orderNo string) error
	ListOrdersByUser(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error)
}

type PaymentLogStore interface {
	PaymentLogExists(ctx context.Context, eventKey string) (bool, error)
	// AppendPaymentLog 幂等键冲突时返回 ErrDuplicateEvent
	AppendPaymentLog(ctx context.Context, log *model.PaymentLog) error
}

type UserStore interface {
	// CreateUser 推荐码冲突时返回 ErrDuplicateKey
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
	CountReferees(ctx context.Context, userID int64) (int64, error)
	GetStatistics(ctx context.Context, userID int64) (*model.Statistics, error)
	// LockStatistics 在事务内锁定统计行，不存在时先创建
	LockStatistics(ctx context.Context, userID int64) (*model.Statistics, error)
	// SaveStatistics ID 为 0 时新建
	SaveStatistics(ctx context.Context, stats *model.Statistics) error
}

type MissionStore interface {
	CreateMission(ctx context.Context, mission *model.Mission) error
	ListActiveMissions(ctx context.Context) ([]*model.Mission, error)
	GetUserMission(ctx context.Context, userID, missionID int64) (*model.UserMission, error)
	// LockUserMission 在事务内锁定进度行，不存在时先创建
	LockUserMission(ctx context.Context, userID, missionID int64) (*model.UserMission, error)
	// SaveUserMission ID 为 0 时新建
	SaveUserMission(ctx context.Context, um *model.UserMission) error
	// ListUserMissions 带 Mission
	ListUserMissions(ctx context.Context, userID int64) ([]*model.UserMission, error)
}

type ReviewStore interface {
	// CreateReview 同一个 EventKey 重复写入时返回 ErrDuplicateEvent，且不影响所在事务
	CreateReview(ctx context.Context, review *model.PaymentReview) error
	GetReview(ctx context.Context, id int64) (*model.PaymentReview, error)
	ListReviews(ctx context.Context, resolved bool, page, pageSize int) ([]*model.PaymentReview, int64, error)
	SaveReview(ctx context.Context, review *model.PaymentReview) error
}

type OutboxStore interface {
	CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	// IncrementRetryCount failed 为 true 时同时标记为 FAILED
	IncrementRetryCount(ctx context.Context, id int64, failed bool) error
}

// Store 订单账本。Transaction 内拿到的 Store 共享同一个事务，
// fn 返回错误时全部回滚。
type Store interface {
	OrderStore
	PaymentLogStore
	UserStore
	MissionStore
	ReviewStore
	OutboxStore

	Transaction(ctx context.Context, fn func(tx Store) error) error
}
