package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ReviewReasonFraudChallenge = "FRAUD_CHALLENGE"
	ReviewReasonOverCredit     = "OVER_CREDIT"
	ReviewReasonLateSettlement = "LATE_SETTLEMENT"
	ReviewReasonPartialRefund  = "PARTIAL_REFUND"
)

// PaymentReview 需要人工处理的支付通知：风控挑战、超额入账、终态订单上的到账、部分退款
type PaymentReview struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo              string          `gorm:"type:varchar(64);index;not null" json:"order_no"`
	GatewayTransactionID string          `gorm:"type:varchar(64);not null" json:"gateway_transaction_id"`
	EventKey             string          `gorm:"type:varchar(96);uniqueIndex;not null" json:"-"` // 流水幂等键 + 复核原因
	Reason               string          `gorm:"type:varchar(32);index;not null" json:"reason"`
	TransactionStatus    string          `gorm:"type:varchar(32);not null" json:"transaction_status"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Payload              datatypes.JSON  `json:"payload"`
	Resolved             bool            `gorm:"index;not null;default:false" json:"resolved"`
	ResolvedBy           string          `gorm:"type:varchar(64)" json:"resolved_by,omitempty"`
	Resolution           string          `gorm:"type:varchar(512)" json:"resolution,omitempty"`
	ResolvedAt           *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt            time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentReview) TableName() string {
	return "payment_review"
}
