package repository

import (
	"context"

	"storefront/internal/model"

	"gorm.io/gorm"
)

func (s *GormStore) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	return s.conn(ctx).Create(msg).Error
}

func (s *GormStore) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := s.conn(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *GormStore) MarkOutboxSent(ctx context.Context, id int64) error {
	return s.conn(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusSent).Error
}

func (s *GormStore) IncrementRetryCount(ctx context.Context, id int64, failed bool) error {
	updates := map[string]interface{}{
		"retry_count": gorm.Expr("retry_count + 1"),
	}
	if failed {
		updates["status"] = model.OutboxStatusFailed
	}
	return s.conn(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(updates).Error
}
