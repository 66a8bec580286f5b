package reconcile

import (
	"fmt"

	"storefront/internal/gateway"
	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// Class 支付事件的归类，由交易状态和风控状态共同决定
type Class int

const (
	ClassPending Class = iota
	ClassHold
	ClassSettlement
	ClassCancellation
	ClassRefund
	ClassPartialRefund
)

func (c Class) String() string {
	switch c {
	case ClassPending:
		return "pending"
	case ClassHold:
		return "hold"
	case ClassSettlement:
		return "settlement"
	case ClassCancellation:
		return "cancellation"
	case ClassRefund:
		return "refund"
	case ClassPartialRefund:
		return "partial_refund"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Classify 对交易状态做穷举匹配，未知状态在 gateway 边界就已经被拒绝
func Classify(status gateway.TransactionStatus, fraud gateway.FraudStatus) (Class, error) {
	switch status {
	case gateway.TransactionCapture:
		switch fraud {
		case gateway.FraudAccept:
			return ClassSettlement, nil
		case gateway.FraudChallenge:
			return ClassHold, nil
		case gateway.FraudDeny:
			return ClassCancellation, nil
		}
	case gateway.TransactionSettlement:
		if fraud == gateway.FraudChallenge {
			return ClassHold, nil
		}
		return ClassSettlement, nil
	case gateway.TransactionPending:
		return ClassPending, nil
	case gateway.TransactionCancel, gateway.TransactionDeny, gateway.TransactionExpire, gateway.TransactionFailure:
		return ClassCancellation, nil
	case gateway.TransactionRefund:
		return ClassRefund, nil
	case gateway.TransactionPartialRefund:
		return ClassPartialRefund, nil
	}
	return 0, fmt.Errorf("%w: transaction_status=%s fraud_status=%s", gateway.ErrInvalidNotification, status, fraud)
}

// EventKey 支付流水的幂等键。
// 退款通知沿用原交易号，加后缀与入账流水区分。
func EventKey(ev *gateway.Event) string {
	switch ev.TransactionStatus {
	case gateway.TransactionRefund, gateway.TransactionPartialRefund:
		return ev.TransactionID + ":refund"
	}
	return ev.TransactionID
}

// ReviewKey 复核记录的幂等键。同一笔交易可能先后因不同原因转人工。
func ReviewKey(eventKey, reason string) string {
	return eventKey + ":" + reason
}

type Action string

const (
	ActionIgnore Action = "IGNORE"
	ActionHold   Action = "HOLD"
	ActionCredit Action = "CREDIT"
	ActionCancel Action = "CANCEL"
	ActionRefund Action = "REFUND"
	ActionReview Action = "REVIEW"
)

// Snapshot 决策时订单的当前状态（已加行锁）
type Snapshot struct {
	Status     string
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
}

// Policy 可配置的业务参数
type Policy struct {
	// OverCreditTolerance 已付金额允许超过订单总额的上限，超出则转人工
	OverCreditTolerance decimal.Decimal
}

// Decision 状态机的输出。只有 AppendLog 为 true 的决策会写支付流水。
type Decision struct {
	Action             Action
	Class              Class
	NextStatus         string
	AmountPaid         decimal.Decimal
	LogAmount          decimal.Decimal
	AppendLog          bool
	ReviewReason       string
	CrossedFullPayment bool
	Note               string
}

// Mutates 决策是否会修改订单
func (d Decision) Mutates() bool {
	return d.Action == ActionCredit || d.Action == ActionCancel || d.Action == ActionRefund
}

// Decide 纯函数：根据订单快照和已校验的事件决定下一步。
//
// 幂等（同一流水键是否已经处理过）由调用方在加锁后先行判断，这里不涉及。
func Decide(s Snapshot, ev *gateway.Event, p Policy) (Decision, error) {
	class, err := Classify(ev.TransactionStatus, ev.FraudStatus)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Class:      class,
		NextStatus: s.Status,
		AmountPaid: s.AmountPaid,
		LogAmount:  decimal.Zero,
	}

	switch class {
	case ClassPending:
		d.Action = ActionIgnore
		d.Note = "waiting for payment"

	case ClassHold:
		d.Action = ActionHold
		d.ReviewReason = model.ReviewReasonFraudChallenge
		d.Note = "fraud challenge"

	case ClassCancellation:
		switch {
		case model.IsAbsorbing(s.Status):
			d.Action = ActionIgnore
			d.Note = "order already closed"
		case s.AmountPaid.IsPositive():
			// 后续阶段失败，但前面的阶段已经到账，订单保持已付部分
			d.Action = ActionIgnore
			d.Note = "benign cancellation"
		default:
			d.Action = ActionCancel
			d.NextStatus = model.OrderStatusCancelled
			d.AppendLog = true
		}

	case ClassSettlement:
		newPaid := s.AmountPaid.Add(ev.GrossAmount)
		switch {
		case model.IsAbsorbing(s.Status):
			d.Action = ActionReview
			d.ReviewReason = model.ReviewReasonLateSettlement
			d.Note = "settlement on closed order"
		case newPaid.GreaterThan(s.Total.Add(p.OverCreditTolerance)):
			d.Action = ActionReview
			d.ReviewReason = model.ReviewReasonOverCredit
			d.Note = fmt.Sprintf("amount paid %s would exceed total %s", newPaid, s.Total)
		default:
			d.Action = ActionCredit
			d.AmountPaid = newPaid
			d.LogAmount = ev.GrossAmount
			d.AppendLog = true
			if ev.Stage == model.SettlementStageClearance || newPaid.GreaterThanOrEqual(s.Total) {
				// 只负责进入 PROCESSING，之后的状态由履约方推进
				if s.Status == model.OrderStatusPendingPayment {
					d.NextStatus = model.OrderStatusProcessing
				}
			}
			d.CrossedFullPayment = s.AmountPaid.LessThan(s.Total) && newPaid.GreaterThanOrEqual(s.Total)
		}

	case ClassRefund:
		if model.IsAbsorbing(s.Status) {
			d.Action = ActionIgnore
			d.Note = "order already closed"
			break
		}
		d.Action = ActionRefund
		d.NextStatus = model.OrderStatusRefunded
		d.AppendLog = true

	case ClassPartialRefund:
		d.Action = ActionReview
		d.ReviewReason = model.ReviewReasonPartialRefund
		d.Note = "partial refund"
	}

	return d, nil
}
