package repository

import (
	"context"
	"errors"

	"storefront/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateReview 用 ON CONFLICT DO NOTHING 去重，PostgreSQL 上唯一键冲突会让整个事务失效
func (s *GormStore) CreateReview(ctx context.Context, review *model.PaymentReview) error {
	result := s.conn(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_key"}}, DoNothing: true}).
		Create(review)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

func (s *GormStore) GetReview(ctx context.Context, id int64) (*model.PaymentReview, error) {
	var review model.PaymentReview
	if err := s.conn(ctx).First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &review, nil
}

func (s *GormStore) ListReviews(ctx context.Context, resolved bool, page, pageSize int) ([]*model.PaymentReview, int64, error) {
	var reviews []*model.PaymentReview
	var total int64

	query := s.conn(ctx).Model(&model.PaymentReview{}).Where("resolved = ?", resolved)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := PageOffset(page, pageSize)
	err := query.Order("created_at ASC").Offset(offset).Limit(limit).Find(&reviews).Error
	return reviews, total, err
}

func (s *GormStore) SaveReview(ctx context.Context, review *model.PaymentReview) error {
	return s.conn(ctx).Save(review).Error
}
