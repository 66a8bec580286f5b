package repository

import (
	"context"

	"storefront/internal/model"
)

func (s *GormStore) PaymentLogExists(ctx context.Context, eventKey string) (bool, error) {
	var count int64
	err := s.conn(ctx).
		Model(&model.PaymentLog{}).
		Where("event_key = ?", eventKey).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) AppendPaymentLog(ctx context.Context, log *model.PaymentLog) error {
	err := s.conn(ctx).Create(log).Error
	if isUniqueViolation(err) {
		return ErrDuplicateEvent
	}
	return err
}
