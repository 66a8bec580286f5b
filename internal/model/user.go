package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferralCode string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"referral_code"`
	ReferredByID *int64          `gorm:"index" json:"referred_by_id,omitempty"`
	ReferrerRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"referrer_rate"` // 作为推荐人的佣金比例（百分比）
	DiscountRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_rate"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Statistics 用户累计数据，只由支付通知的副作用修改
type Statistics struct {
	ID                    int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID                int64           `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalOrders           int64           `gorm:"not null;default:0" json:"total_orders"`
	TotalSpent            decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_spent"`
	TotalReferrals        int64           `gorm:"not null;default:0" json:"total_referrals"`
	TotalReferralEarnings decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_referral_earnings"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Statistics) TableName() string {
	return "statistics"
}
