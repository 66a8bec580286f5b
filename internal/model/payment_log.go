package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 结算阶段：一笔网关交易代表订单总额的哪一部分
const (
	SettlementStageDown      = "DOWN"
	SettlementStageFull      = "FULL"
	SettlementStageClearance = "CLEARANCE"
)

// PaymentLog 支付流水
//
// 只追加，不修改，不删除。EventKey 唯一，是通知幂等的最终依据：
// 同一个网关交易重复推送时，插入会撞唯一索引。
type PaymentLog struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID              int64           `gorm:"index;not null" json:"order_id"`
	OrderNo              string          `gorm:"type:varchar(64);index;not null" json:"order_no"`
	Stage                string          `gorm:"type:varchar(16);not null" json:"stage"`
	TransactionStatus    string          `gorm:"type:varchar(32);not null" json:"transaction_status"`
	FraudStatus          string          `gorm:"type:varchar(16)" json:"fraud_status"`
	PaymentType          string          `gorm:"type:varchar(32)" json:"payment_type"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	GatewayTransactionID string          `gorm:"type:varchar(64);index;not null" json:"gateway_transaction_id"`
	EventKey             string          `gorm:"type:varchar(96);uniqueIndex;not null" json:"-"`
	TransactionTime      *time.Time      `json:"transaction_time"`
	SettlementTime       *time.Time      `json:"settlement_time"`
	Payload              datatypes.JSON  `json:"-"`
	CreatedAt            time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PaymentLog) TableName() string {
	return "payment_log"
}
