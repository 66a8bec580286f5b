package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/reward"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dispatcher 订单首次付清时的副作用：用户统计、推荐佣金、任务进度。
// 所有写入都在调用方的事务里完成，与订单、流水一起提交或回滚。
type Dispatcher struct {
	topics config.KafkaTopicConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewDispatcher(topics config.KafkaTopicConfig, lgr *zap.Logger) *Dispatcher {
	if lgr == nil {
		lgr = zap.NewNop()
	}
	return &Dispatcher{topics: topics, log: lgr, now: time.Now}
}

// OnFullyPaid 只能在 amount_paid 首次越过订单总额时调用一次
func (d *Dispatcher) OnFullyPaid(ctx context.Context, tx repository.Store, order *model.Order) error {
	missions, err := tx.ListActiveMissions(ctx)
	if err != nil {
		return fmt.Errorf("查询任务失败: %w", err)
	}

	err = d.addStatistics(ctx, tx, order.UserID, func(s *model.Statistics) {
		s.TotalOrders++
		s.TotalSpent = s.TotalSpent.Add(order.Total)
	})
	if err != nil {
		return err
	}

	err = d.addProgress(ctx, tx, missions, order.UserID, map[string]decimal.Decimal{
		model.MetricOrderCount:  decimal.NewFromInt(1),
		model.MetricAmountSpent: order.Total,
	})
	if err != nil {
		return err
	}

	if err := d.creditReferrer(ctx, tx, missions, order); err != nil {
		return err
	}

	paidAt := d.now()
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}
	return writeOutbox(ctx, tx, d.topics.OrderPaid, order.OrderNo, OrderPaidEvent{
		OrderNo:    order.OrderNo,
		UserID:     order.UserID,
		Total:      order.Total,
		AmountPaid: order.AmountPaid,
		PaidAt:     paidAt,
	})
}

func (d *Dispatcher) creditReferrer(ctx context.Context, tx repository.Store, missions []*model.Mission, order *model.Order) error {
	owner, err := tx.GetUser(ctx, order.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			d.log.Warn("order owner missing, referral skipped",
				zap.String("order_no", order.OrderNo), zap.Int64("user_id", order.UserID))
			return nil
		}
		return fmt.Errorf("查询用户失败: %w", err)
	}
	if owner.ReferredByID == nil {
		return nil
	}

	referrer, err := tx.GetUser(ctx, *owner.ReferredByID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			d.log.Warn("referrer missing, referral skipped",
				zap.String("order_no", order.OrderNo), zap.Int64("referrer_id", *owner.ReferredByID))
			return nil
		}
		return fmt.Errorf("查询推荐人失败: %w", err)
	}

	commission := reward.Commission(order.Total, referrer.ReferrerRate)

	err = d.addStatistics(ctx, tx, referrer.ID, func(s *model.Statistics) {
		s.TotalReferrals++
		s.TotalReferralEarnings = s.TotalReferralEarnings.Add(commission)
	})
	if err != nil {
		return err
	}

	err = d.addProgress(ctx, tx, missions, referrer.ID, map[string]decimal.Decimal{
		model.MetricReferralCount:    decimal.NewFromInt(1),
		model.MetricReferralEarnings: commission,
	})
	if err != nil {
		return err
	}

	d.log.Info("referral commission credited",
		zap.String("order_no", order.OrderNo),
		zap.Int64("referrer_id", referrer.ID),
		zap.String("commission", commission.StringFixed(2)))

	return writeOutbox(ctx, tx, d.topics.ReferralCommission, order.OrderNo, ReferralCommissionEvent{
		OrderNo:    order.OrderNo,
		ReferrerID: referrer.ID,
		RefereeID:  owner.ID,
		Rate:       referrer.ReferrerRate,
		Commission: commission,
	})
}

// addStatistics 在行锁下累加，不同订单的并发通知不会互相覆盖
func (d *Dispatcher) addStatistics(ctx context.Context, tx repository.Store, userID int64, apply func(*model.Statistics)) error {
	stats, err := tx.LockStatistics(ctx, userID)
	if err != nil {
		return fmt.Errorf("锁定用户统计失败: %w", err)
	}

	apply(stats)

	if err := tx.SaveStatistics(ctx, stats); err != nil {
		return fmt.Errorf("更新用户统计失败: %w", err)
	}
	return nil
}

// addProgress 对指标匹配的进行中任务累加进度，进度行同样加锁
func (d *Dispatcher) addProgress(ctx context.Context, tx repository.Store, missions []*model.Mission, userID int64, contributions map[string]decimal.Decimal) error {
	for _, m := range missions {
		contribution, ok := contributions[m.MetricType]
		if !ok {
			continue
		}

		um, err := tx.LockUserMission(ctx, userID, m.ID)
		if err != nil {
			return fmt.Errorf("锁定任务进度失败: %w", err)
		}

		p := reward.Evaluate(um.CurrentProgress, contribution, m.TargetValue, um.Achieved)
		um.CurrentProgress = p.Value
		um.Achieved = p.Achieved
		if p.JustAchieved {
			now := d.now()
			um.AchievedAt = &now
			d.log.Info("mission achieved",
				zap.Int64("user_id", userID),
				zap.String("mission", m.Code))
		}

		if err := tx.SaveUserMission(ctx, um); err != nil {
			return fmt.Errorf("更新任务进度失败: %w", err)
		}
	}
	return nil
}

func writeOutbox(ctx context.Context, tx repository.Store, topic, key string, payload any) error {
	msg, err := model.NewOutboxMessage(topic, key, payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := tx.CreateOutboxMessage(ctx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
