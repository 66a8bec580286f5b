package repository

import (
	"context"
	"errors"

	"storefront/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	err := s.conn(ctx).Create(user).Error
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (s *GormStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	var user model.User
	if err := s.conn(ctx).Where("referral_code = ?", code).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) CountReferees(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&model.User{}).Where("referred_by_id = ?", userID).Count(&count).Error
	return count, err
}

func (s *GormStore) GetStatistics(ctx context.Context, userID int64) (*model.Statistics, error) {
	var stats model.Statistics
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStatisticsNotFound
		}
		return nil, err
	}
	return &stats, nil
}

// LockStatistics 统计行不存在时先插入空行，再 SELECT ... FOR UPDATE。
// 并发插入由唯一索引兜底，冲突时什么也不做。
func (s *GormStore) LockStatistics(ctx context.Context, userID int64) (*model.Statistics, error) {
	err := s.conn(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&model.Statistics{UserID: userID}).Error
	if err != nil {
		return nil, err
	}

	var stats model.Statistics
	err = s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStatisticsNotFound
		}
		return nil, err
	}
	return &stats, nil
}

func (s *GormStore) SaveStatistics(ctx context.Context, stats *model.Statistics) error {
	if stats.ID == 0 {
		err := s.conn(ctx).Create(stats).Error
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}

	result := s.conn(ctx).
		Model(&model.Statistics{}).
		Where("id = ?", stats.ID).
		Updates(map[string]interface{}{
			"total_orders":            stats.TotalOrders,
			"total_spent":             stats.TotalSpent,
			"total_referrals":         stats.TotalReferrals,
			"total_referral_earnings": stats.TotalReferralEarnings,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatisticsNotFound
	}
	return nil
}
