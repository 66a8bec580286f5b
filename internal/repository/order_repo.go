package repository

import (
	"context"
	"errors"

	"storefront/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *GormStore) CreateOrder(ctx context.Context, order *model.Order) error {
	return s.conn(ctx).Create(order).Error
}

func (s *GormStore) GetOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := s.conn(ctx).
		Preload("Products").
		Preload("PaymentLogs", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("order_no = ?", orderNo).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// LockOrder SELECT ... FOR UPDATE，同一订单的通知在这里串行
func (s *GormStore) LockOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_no = ? AND enabled = ?", orderNo, true).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *GormStore) SaveOrderPayment(ctx context.Context, order *model.Order) error {
	result := s.conn(ctx).
		Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":      order.Status,
			"amount_paid": order.AmountPaid,
			"paid_at":     order.PaidAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateOrderStatus 带旧状态条件的更新，并发修改时只有一个能成功
func (s *GormStore) UpdateOrderStatus(ctx context.Context, orderNo, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	result := s.conn(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ? AND enabled = ?", orderNo, fromStatus, true).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

func (s *GormStore) DisableOrder(ctx context.Context, orderNo string) error {
	result := s.conn(ctx).
		Model(&model.Order{}).
		Where("order_no = ?", orderNo).
		Update("enabled", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *GormStore) ListOrdersByUser(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := s.conn(ctx).Model(&model.Order{}).Where("user_id = ? AND enabled = ?", userID, true)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := PageOffset(page, pageSize)
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error

	return orders, total, err
}
