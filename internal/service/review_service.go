package service

import (
	"context"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// ReviewService 人工复核队列。复核只记录结论，订单的后续处理由运营在外部完成。
type ReviewService struct {
	store   repository.Store
	checker StatusChecker
	log     *zap.Logger
}

func NewReviewService(store repository.Store, checker StatusChecker, lgr *zap.Logger) *ReviewService {
	if lgr == nil {
		lgr = zap.NewNop()
	}
	return &ReviewService{store: store, checker: checker, log: lgr}
}

func (s *ReviewService) List(ctx context.Context, resolved bool, page, pageSize int) ([]*model.PaymentReview, int64, error) {
	return s.store.ListReviews(ctx, resolved, page, pageSize)
}

func (s *ReviewService) Resolve(ctx context.Context, id int64, actor, note string) (*model.PaymentReview, error) {
	var review *model.PaymentReview
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		review, err = tx.GetReview(ctx, id)
		if err != nil {
			return err
		}
		if review.Resolved {
			return ErrReviewResolved
		}
		now := time.Now()
		review.Resolved = true
		review.ResolvedBy = actor
		review.Resolution = note
		review.ResolvedAt = &now
		return tx.SaveReview(ctx, review)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment review resolved",
		zap.Int64("review_id", id),
		zap.String("order_no", review.OrderNo),
		zap.String("actor", actor))
	return review, nil
}

// Recheck 向网关回查交易的当前状态，不修改任何数据
func (s *ReviewService) Recheck(ctx context.Context, id int64) (*gateway.TransactionState, error) {
	if s.checker == nil {
		return nil, ErrGatewayUnavailable
	}
	review, err := s.store.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checker.TransactionStatus(ctx, review.GatewayTransactionID)
}
