package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/reward"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const referralCodeAttempts = 5

type UserService struct {
	store       repository.Store
	codePrefix  string
	defaultRate decimal.Decimal
	log         *zap.Logger
}

func NewUserService(store repository.Store, codePrefix string, defaultRate decimal.Decimal, lgr *zap.Logger) *UserService {
	if lgr == nil {
		lgr = zap.NewNop()
	}
	return &UserService{store: store, codePrefix: codePrefix, defaultRate: defaultRate, log: lgr}
}

type RegisterRequest struct {
	// ReferralCode 推荐人的推荐码，可为空
	ReferralCode string
	ReferrerRate *decimal.Decimal
	DiscountRate decimal.Decimal
}

// Register 创建用户、统计行以及所有进行中任务的 UserMission
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	user := &model.User{
		ReferrerRate: s.defaultRate,
		DiscountRate: req.DiscountRate,
	}
	if req.ReferrerRate != nil {
		user.ReferrerRate = *req.ReferrerRate
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if req.ReferralCode != "" {
			referrer, err := tx.GetUserByReferralCode(ctx, req.ReferralCode)
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrInvalidReferralCode
			}
			if err != nil {
				return err
			}
			user.ReferredByID = &referrer.ID
		}

		code, err := s.uniqueReferralCode(ctx, tx)
		if err != nil {
			return err
		}
		user.ReferralCode = code

		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("创建用户失败: %w", err)
		}
		if err := tx.SaveStatistics(ctx, &model.Statistics{UserID: user.ID}); err != nil {
			return fmt.Errorf("创建用户统计失败: %w", err)
		}

		missions, err := tx.ListActiveMissions(ctx)
		if err != nil {
			return fmt.Errorf("查询任务失败: %w", err)
		}
		for _, m := range missions {
			if err := tx.SaveUserMission(ctx, &model.UserMission{UserID: user.ID, MissionID: m.ID}); err != nil {
				return fmt.Errorf("创建用户任务失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("referral_code", user.ReferralCode))
	return user, nil
}

// uniqueReferralCode 先查后插，避免在事务里撞唯一索引（PostgreSQL 会中止整个事务）
func (s *UserService) uniqueReferralCode(ctx context.Context, tx repository.Store) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := reward.GenerateReferralCode(s.codePrefix)
		if err != nil {
			return "", err
		}
		_, err = tx.GetUserByReferralCode(ctx, code)
		if errors.Is(err, repository.ErrUserNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("生成推荐码失败: %w", repository.ErrDuplicateKey)
}

// Statistics 还没有任何已付订单的用户返回全零
func (s *UserService) Statistics(ctx context.Context, userID int64) (*model.Statistics, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	stats, err := s.store.GetStatistics(ctx, userID)
	if errors.Is(err, repository.ErrStatisticsNotFound) {
		return &model.Statistics{UserID: userID}, nil
	}
	return stats, err
}

type ReferralSummary struct {
	ReferralCode   string          `json:"referral_code"`
	ReferrerRate   decimal.Decimal `json:"referrer_rate"`
	Referees       int64           `json:"referees"`
	TotalReferrals int64           `json:"total_referrals"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
}

func (s *UserService) Referral(ctx context.Context, userID int64) (*ReferralSummary, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	referees, err := s.store.CountReferees(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.Statistics(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ReferralSummary{
		ReferralCode:   user.ReferralCode,
		ReferrerRate:   user.ReferrerRate,
		Referees:       referees,
		TotalReferrals: stats.TotalReferrals,
		TotalEarnings:  stats.TotalReferralEarnings,
	}, nil
}

type MissionProgress struct {
	MissionID          int64           `json:"mission_id"`
	Code               string          `json:"code"`
	Title              string          `json:"title"`
	MetricType         string          `json:"metric_type"`
	TargetValue        decimal.Decimal `json:"target_value"`
	CurrentProgress    decimal.Decimal `json:"current_progress"`
	ProgressPercentage int64           `json:"progress_percentage"`
	Achieved           bool            `json:"achieved"`
	AchievedAt         *time.Time      `json:"achieved_at"`
	Reward             datatypes.JSON  `json:"reward,omitempty"`
}

func (s *UserService) Missions(ctx context.Context, userID int64) ([]MissionProgress, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	list, err := s.store.ListUserMissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]MissionProgress, 0, len(list))
	for _, um := range list {
		if um.Mission == nil {
			continue
		}
		out = append(out, MissionProgress{
			MissionID:          um.MissionID,
			Code:               um.Mission.Code,
			Title:              um.Mission.Title,
			MetricType:         um.Mission.MetricType,
			TargetValue:        um.Mission.TargetValue,
			CurrentProgress:    um.CurrentProgress,
			ProgressPercentage: reward.Percentage(um.CurrentProgress, um.Mission.TargetValue),
			Achieved:           um.Achieved,
			AchievedAt:         um.AchievedAt,
			Reward:             um.Mission.Reward,
		})
	}
	return out, nil
}

// CreateMission 新任务只对之后注册的用户预建 UserMission，老用户在首次贡献时按需创建
func (s *UserService) CreateMission(ctx context.Context, m *model.Mission) error {
	if !model.ValidMetric(m.MetricType) {
		return fmt.Errorf("%w: 未知的任务指标 %q", ErrInvalidMission, m.MetricType)
	}
	if m.TargetValue.IsNegative() {
		return fmt.Errorf("%w: 目标值不能为负", ErrInvalidMission)
	}
	return s.store.CreateMission(ctx, m)
}
