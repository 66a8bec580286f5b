package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	MetricOrderCount       = "ORDER_COUNT"
	MetricAmountSpent      = "AMOUNT_SPENT"
	MetricReferralCount    = "REFERRAL_COUNT"
	MetricReferralEarnings = "REFERRAL_EARNINGS"
)

func ValidMetric(metric string) bool {
	switch metric {
	case MetricOrderCount, MetricAmountSpent, MetricReferralCount, MetricReferralEarnings:
		return true
	}
	return false
}

type Mission struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Title       string          `gorm:"type:varchar(128);not null" json:"title"`
	MetricType  string          `gorm:"type:varchar(32);index;not null" json:"metric_type"`
	TargetValue decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"target_value"`
	Reward      datatypes.JSON  `json:"reward"`
	Active      bool            `gorm:"index;not null" json:"active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Mission) TableName() string {
	return "mission"
}

// UserMission 用户任务进度。进度只增不减，Achieved 只会从 false 变成 true 一次。
type UserMission struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64           `gorm:"uniqueIndex:idx_user_mission;not null" json:"user_id"`
	MissionID       int64           `gorm:"uniqueIndex:idx_user_mission;not null" json:"mission_id"`
	Mission         *Mission        `gorm:"foreignKey:MissionID" json:"mission,omitempty"`
	CurrentProgress decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"current_progress"`
	Achieved        bool            `gorm:"not null;default:false" json:"achieved"`
	AchievedAt      *time.Time      `json:"achieved_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserMission) TableName() string {
	return "user_mission"
}
