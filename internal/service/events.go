package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// 写入 outbox 的事件内容

type OrderPaidEvent struct {
	OrderNo    string          `json:"order_no"`
	UserID     int64           `json:"user_id"`
	Total      decimal.Decimal `json:"total"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	PaidAt     time.Time       `json:"paid_at"`
}

type OrderStatusEvent struct {
	OrderNo    string          `json:"order_no"`
	UserID     int64           `json:"user_id"`
	FromStatus string          `json:"from_status"`
	ToStatus   string          `json:"to_status"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Source     string          `json:"source"`
	ChangedAt  time.Time       `json:"changed_at"`
}

type ReferralCommissionEvent struct {
	OrderNo    string          `json:"order_no"`
	ReferrerID int64           `json:"referrer_id"`
	RefereeID  int64           `json:"referee_id"`
	Rate       decimal.Decimal `json:"rate"`
	Commission decimal.Decimal `json:"commission"`
}

const (
	sourceGateway     = "gateway"
	sourceFulfillment = "fulfillment"
)
