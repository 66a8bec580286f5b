package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/infrastructure/cache"
	"storefront/internal/model"
	"storefront/internal/reconcile"
	"storefront/internal/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeHeld      Outcome = "held"
	OutcomeReview    Outcome = "review"
)

// NotificationResult 回给网关的处理结果
type NotificationResult struct {
	OrderNo           string
	OrderStatus       string
	TransactionStatus string
	Outcome           Outcome
}

// ReconcileService 支付通知对账
//
// 处理顺序：验签 -> 解析 -> 缓存判重 -> 订单锁 -> 事务（行锁、流水判重、状态机、副作用）-> 标记已处理
type ReconcileService struct {
	store      repository.Store
	auth       *gateway.Authenticator
	decoder    *gateway.Decoder
	locker     Locker
	seen       ProcessedCache
	dispatcher *Dispatcher
	policy     reconcile.Policy
	topics     config.KafkaTopicConfig
	log        *zap.Logger
	now        func() time.Time
}

type ReconcileOption func(*ReconcileService)

func WithLogger(lgr *zap.Logger) ReconcileOption {
	return func(s *ReconcileService) {
		s.log = lgr
	}
}

func WithProcessedCache(c ProcessedCache) ReconcileOption {
	return func(s *ReconcileService) {
		s.seen = c
	}
}

func WithPolicy(p reconcile.Policy) ReconcileOption {
	return func(s *ReconcileService) {
		s.policy = p
	}
}

func WithTopics(topics config.KafkaTopicConfig) ReconcileOption {
	return func(s *ReconcileService) {
		s.topics = topics
	}
}

func WithDecoder(d *gateway.Decoder) ReconcileOption {
	return func(s *ReconcileService) {
		s.decoder = d
	}
}

func NewReconcileService(store repository.Store, auth *gateway.Authenticator, locker Locker, options ...ReconcileOption) *ReconcileService {
	s := &ReconcileService{
		store:   store,
		auth:    auth,
		locker:  locker,
		decoder: gateway.NewDecoder(time.UTC),
		seen:    cache.NopMarker{},
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.dispatcher = NewDispatcher(s.topics, s.log)
	s.dispatcher.now = s.now
	return s
}

// HandleNotification 处理一条网关回调。
//
// 返回的错误：gateway.ErrInvalidSignature、gateway.ErrInvalidNotification、
// gateway.ErrMalformedIdentifier、repository.ErrOrderNotFound，其余均为内部错误，
// 事务已整体回滚，网关重推是安全的。
func (s *ReconcileService) HandleNotification(ctx context.Context, raw []byte) (*NotificationResult, error) {
	n, err := s.decoder.Unmarshal(raw)
	if err != nil {
		return nil, err
	}

	if err := s.auth.Verify(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey); err != nil {
		s.log.Warn("notification signature rejected", zap.String("order_id", n.OrderID))
		return nil, err
	}

	ev, err := s.decoder.Event(n, raw)
	if err != nil {
		s.log.Warn("notification rejected", zap.String("order_id", n.OrderID), zap.Error(err))
		return nil, err
	}

	key := reconcile.EventKey(ev)
	lg := s.log.With(
		zap.String("order_no", ev.OrderNo),
		zap.String("stage", ev.Stage),
		zap.String("transaction_id", ev.TransactionID),
		zap.String("transaction_status", string(ev.TransactionStatus)),
	)

	if seen, err := s.seen.Seen(ctx, key); err != nil {
		lg.Warn("processed cache unavailable", zap.Error(err))
	} else if seen {
		return s.duplicateResult(ctx, ev)
	}

	release, err := s.locker.Acquire(ctx, ev.OrderNo)
	if err != nil {
		return nil, fmt.Errorf("获取订单锁失败: %w", err)
	}
	defer release()

	result := &NotificationResult{
		OrderNo:           ev.OrderNo,
		TransactionStatus: string(ev.TransactionStatus),
	}

	var decision reconcile.Decision
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := tx.LockOrder(ctx, ev.OrderNo)
		if err != nil {
			return err
		}
		result.OrderStatus = order.Status

		exists, err := tx.PaymentLogExists(ctx, key)
		if err != nil {
			return fmt.Errorf("查询支付流水失败: %w", err)
		}
		if exists {
			result.Outcome = OutcomeDuplicate
			return nil
		}

		decision, err = reconcile.Decide(reconcile.Snapshot{
			Status:     order.Status,
			Total:      order.Total,
			AmountPaid: order.AmountPaid,
		}, ev, s.policy)
		if err != nil {
			return err
		}

		result.Outcome, err = s.apply(ctx, tx, order, ev, key, decision)
		if err != nil {
			return err
		}
		result.OrderStatus = order.Status
		return nil
	})

	switch {
	case errors.Is(err, repository.ErrDuplicateEvent):
		// 并发的同一条通知在唯一索引上失败，事务已回滚
		result.Outcome = OutcomeDuplicate
	case errors.Is(err, repository.ErrOrderNotFound):
		lg.Warn("order not found")
		return nil, err
	case err != nil:
		lg.Error("reconcile failed", zap.Error(err))
		return nil, err
	}

	if result.Outcome == OutcomeApplied || result.Outcome == OutcomeDuplicate {
		if err := s.seen.Mark(ctx, key); err != nil {
			lg.Warn("mark processed failed", zap.Error(err))
		}
	}

	lg.Info("notification reconciled",
		zap.String("outcome", string(result.Outcome)),
		zap.String("action", string(decision.Action)),
		zap.String("order_status", result.OrderStatus),
		zap.String("amount_paid", decision.AmountPaid.StringFixed(2)),
		zap.String("note", decision.Note))

	return result, nil
}

// apply 执行状态机的决策；流水先于订单更新和副作用写入
func (s *ReconcileService) apply(ctx context.Context, tx repository.Store, order *model.Order, ev *gateway.Event, key string, d reconcile.Decision) (Outcome, error) {
	switch d.Action {
	case reconcile.ActionIgnore:
		return OutcomeIgnored, nil

	case reconcile.ActionHold, reconcile.ActionReview:
		review := &model.PaymentReview{
			OrderNo:              order.OrderNo,
			GatewayTransactionID: ev.TransactionID,
			EventKey:             reconcile.ReviewKey(key, d.ReviewReason),
			Reason:               d.ReviewReason,
			TransactionStatus:    string(ev.TransactionStatus),
			Amount:               ev.GrossAmount,
			Payload:              datatypes.JSON(ev.Raw),
		}
		if err := tx.CreateReview(ctx, review); err != nil && !errors.Is(err, repository.ErrDuplicateEvent) {
			return "", fmt.Errorf("写入复核记录失败: %w", err)
		}
		if d.Action == reconcile.ActionHold {
			return OutcomeHeld, nil
		}
		return OutcomeReview, nil
	}

	paymentLog := &model.PaymentLog{
		OrderID:              order.ID,
		OrderNo:              order.OrderNo,
		Stage:                ev.Stage,
		TransactionStatus:    string(ev.TransactionStatus),
		FraudStatus:          string(ev.FraudStatus),
		PaymentType:          ev.PaymentType,
		Amount:               d.LogAmount,
		GatewayTransactionID: ev.TransactionID,
		EventKey:             key,
		TransactionTime:      ev.TransactionTime,
		SettlementTime:       ev.SettlementTime,
		Payload:              datatypes.JSON(ev.Raw),
	}
	if err := tx.AppendPaymentLog(ctx, paymentLog); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			return "", err
		}
		return "", fmt.Errorf("写入支付流水失败: %w", err)
	}

	fromStatus := order.Status
	order.Status = d.NextStatus
	order.AmountPaid = d.AmountPaid
	if d.CrossedFullPayment && order.PaidAt == nil {
		now := s.now()
		order.PaidAt = &now
	}
	if err := tx.SaveOrderPayment(ctx, order); err != nil {
		return "", fmt.Errorf("更新订单失败: %w", err)
	}

	if d.CrossedFullPayment {
		if err := s.dispatcher.OnFullyPaid(ctx, tx, order); err != nil {
			return "", err
		}
	}

	if fromStatus != order.Status {
		err := writeOutbox(ctx, tx, s.topics.OrderStatus, order.OrderNo, OrderStatusEvent{
			OrderNo:    order.OrderNo,
			UserID:     order.UserID,
			FromStatus: fromStatus,
			ToStatus:   order.Status,
			AmountPaid: order.AmountPaid,
			Source:     sourceGateway,
			ChangedAt:  s.now(),
		})
		if err != nil {
			return "", err
		}
	}
	return OutcomeApplied, nil
}

func (s *ReconcileService) duplicateResult(ctx context.Context, ev *gateway.Event) (*NotificationResult, error) {
	order, err := s.store.GetOrder(ctx, ev.OrderNo)
	if err != nil {
		return nil, err
	}
	return &NotificationResult{
		OrderNo:           ev.OrderNo,
		OrderStatus:       order.Status,
		TransactionStatus: string(ev.TransactionStatus),
		Outcome:           OutcomeDuplicate,
	}, nil
}
