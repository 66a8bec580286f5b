package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrInvalidNotification = errors.New("通知内容不合法")

type TransactionStatus string

const (
	TransactionCapture       TransactionStatus = "capture"
	TransactionSettlement    TransactionStatus = "settlement"
	TransactionPending       TransactionStatus = "pending"
	TransactionCancel        TransactionStatus = "cancel"
	TransactionDeny          TransactionStatus = "deny"
	TransactionExpire        TransactionStatus = "expire"
	TransactionFailure       TransactionStatus = "failure"
	TransactionRefund        TransactionStatus = "refund"
	TransactionPartialRefund TransactionStatus = "partial_refund"
)

type FraudStatus string

const (
	FraudAccept    FraudStatus = "accept"
	FraudChallenge FraudStatus = "challenge"
	FraudDeny      FraudStatus = "deny"
)

// TimeLayout 网关回调中时间字段的格式
const TimeLayout = "2006-01-02 15:04:05"

// Notification 网关回调的原始报文，字段名与网关保持一致
type Notification struct {
	OrderID           string `json:"order_id" validate:"required"`
	StatusCode        string `json:"status_code" validate:"required"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status" validate:"required,oneof=capture settlement pending cancel deny expire failure refund partial_refund"`
	FraudStatus       string `json:"fraud_status" validate:"omitempty,oneof=accept challenge deny"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id" validate:"required"`
	TransactionTime   string `json:"transaction_time"`
	SettlementTime    string `json:"settlement_time"`
}

// Event 校验通过、强类型化之后的支付事件，状态机只接受这个类型
type Event struct {
	OrderReference    string
	OrderNo           string
	Stage             string
	StatusCode        string
	TransactionStatus TransactionStatus
	FraudStatus       FraudStatus
	PaymentType       string
	TransactionID     string
	GrossAmount       decimal.Decimal
	TransactionTime   *time.Time
	SettlementTime    *time.Time
	Raw               []byte
}

// Decoder 把回调报文转换成 Event
type Decoder struct {
	validate *validator.Validate
	loc      *time.Location
}

// NewDecoder loc 为网关时间字段所在时区，nil 时使用 UTC
func NewDecoder(loc *time.Location) *Decoder {
	if loc == nil {
		loc = time.UTC
	}
	return &Decoder{validate: validator.New(), loc: loc}
}

// Unmarshal 只做 JSON 解码，签名校验需要原始字段
func (d *Decoder) Unmarshal(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	return &n, nil
}

// Event 校验字段并解析 order_id、金额和时间
func (d *Decoder) Event(n *Notification, raw []byte) (*Event, error) {
	if err := d.validate.Struct(n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}

	id, err := ParseIdentifier(n.OrderID)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: gross_amount %q", ErrInvalidNotification, n.GrossAmount)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative gross_amount", ErrInvalidNotification)
	}

	fraud := FraudStatus(n.FraudStatus)
	if fraud == "" {
		fraud = FraudAccept
	}

	ev := &Event{
		OrderReference:    n.OrderID,
		OrderNo:           id.OrderNo,
		Stage:             id.Stage,
		StatusCode:        n.StatusCode,
		TransactionStatus: TransactionStatus(n.TransactionStatus),
		FraudStatus:       fraud,
		PaymentType:       n.PaymentType,
		TransactionID:     n.TransactionID,
		GrossAmount:       amount,
		Raw:               raw,
	}
	if ev.TransactionTime, err = d.parseTime(n.TransactionTime); err != nil {
		return nil, err
	}
	if ev.SettlementTime, err = d.parseTime(n.SettlementTime); err != nil {
		return nil, err
	}
	return ev, nil
}

func (d *Decoder) parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(TimeLayout, s, d.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: time %q", ErrInvalidNotification, s)
	}
	return &t, nil
}
