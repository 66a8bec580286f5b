package repository

import (
	"context"
	"errors"

	"storefront/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *GormStore) CreateMission(ctx context.Context, mission *model.Mission) error {
	err := s.conn(ctx).Create(mission).Error
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (s *GormStore) ListActiveMissions(ctx context.Context) ([]*model.Mission, error) {
	var missions []*model.Mission
	err := s.conn(ctx).Where("active = ?", true).Order("id ASC").Find(&missions).Error
	return missions, err
}

func (s *GormStore) GetUserMission(ctx context.Context, userID, missionID int64) (*model.UserMission, error) {
	var um model.UserMission
	err := s.conn(ctx).
		Where("user_id = ? AND mission_id = ?", userID, missionID).
		First(&um).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserMissionNotFound
		}
		return nil, err
	}
	return &um, nil
}

// LockUserMission 与 LockStatistics 相同：先补齐进度行，再加行锁读取
func (s *GormStore) LockUserMission(ctx context.Context, userID, missionID int64) (*model.UserMission, error) {
	err := s.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "mission_id"}},
			DoNothing: true,
		}).
		Create(&model.UserMission{UserID: userID, MissionID: missionID}).Error
	if err != nil {
		return nil, err
	}

	var um model.UserMission
	err = s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND mission_id = ?", userID, missionID).
		First(&um).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserMissionNotFound
		}
		return nil, err
	}
	return &um, nil
}

func (s *GormStore) SaveUserMission(ctx context.Context, um *model.UserMission) error {
	if um.ID == 0 {
		err := s.conn(ctx).Omit("Mission").Create(um).Error
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}

	result := s.conn(ctx).
		Model(&model.UserMission{}).
		Where("id = ?", um.ID).
		Updates(map[string]interface{}{
			"current_progress": um.CurrentProgress,
			"achieved":         um.Achieved,
			"achieved_at":      um.AchievedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserMissionNotFound
	}
	return nil
}

func (s *GormStore) ListUserMissions(ctx context.Context, userID int64) ([]*model.UserMission, error) {
	var list []*model.UserMission
	err := s.conn(ctx).
		Preload("Mission").
		Where("user_id = ?", userID).
		Order("mission_id ASC").
		Find(&list).Error
	return list, err
}
