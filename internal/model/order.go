package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusProcessing     = "PROCESSING"
	OrderStatusReadyToShip    = "READY_TO_SHIP"
	OrderStatusShipped        = "SHIPPED"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
	OrderStatusRefunded       = "REFUNDED"
)

// ValidStatusTransitions 外部履约方可以推动的状态迁移。
// 支付通知引起的迁移（PROCESSING / CANCELLED / REFUNDED）由 reconcile 包决定。
var ValidStatusTransitions = map[string][]string{
	OrderStatusPendingPayment: {OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusReadyToShip},
	OrderStatusReadyToShip:    {OrderStatusShipped},
	OrderStatusShipped:        {OrderStatusDelivered},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsAbsorbing 吸收态：任何支付通知都不能再改变订单状态
func IsAbsorbing(status string) bool {
	return status == OrderStatusCancelled || status == OrderStatusRefunded
}

type Order struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID         int64           `gorm:"index;not null" json:"user_id"`
	CompanyOrderID *int64          `gorm:"index" json:"company_order_id,omitempty"`
	Status         string          `gorm:"type:varchar(20);index;not null" json:"status"`
	Total          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount_paid"`
	Enabled        bool            `gorm:"not null;default:true" json:"enabled"`
	PaidAt         *time.Time      `json:"paid_at"`
	Products       []OrderProduct  `gorm:"foreignKey:OrderID" json:"products,omitempty"`
	PaymentLogs    []PaymentLog    `gorm:"foreignKey:OrderID" json:"payment_logs,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderProduct struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64           `gorm:"index;not null" json:"order_id"`
	ProductID int64           `gorm:"not null" json:"product_id"`
	Name      string          `gorm:"type:varchar(128);not null" json:"name"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_price"`
}

func (OrderProduct) TableName() string {
	return "order_product"
}

// Subtotal 数量 × 单价
func (p OrderProduct) Subtotal() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}
