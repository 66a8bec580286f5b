package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_StagedSettlement(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 1000000)

	res, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageDown, status: gateway.TransactionSettlement, txID: "tx-dp", amount: "300000.00"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.OrderStatusPendingPayment, res.OrderStatus)
	assert.Equal(t, "settlement", res.TransactionStatus)

	got := f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusPendingPayment, got.Status)
	assert.True(t, dec(300000).Equal(got.AmountPaid))
	assert.Nil(t, got.PaidAt)
	assert.Equal(t, int64(0), f.stats(t, owner.ID).TotalOrders)

	res, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageClearance, status: gateway.TransactionSettlement, txID: "tx-clr", amount: "700000.00"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.OrderStatusProcessing, res.OrderStatus)

	got = f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusProcessing, got.Status)
	assert.True(t, dec(1000000).Equal(got.AmountPaid))
	assert.NotNil(t, got.PaidAt)
	require.Len(t, got.PaymentLogs, 2)
	assert.Equal(t, model.SettlementStageDown, got.PaymentLogs[0].Stage)
	assert.Equal(t, model.SettlementStageClearance, got.PaymentLogs[1].Stage)

	stats := f.stats(t, owner.ID)
	assert.Equal(t, int64(1), stats.TotalOrders)
	assert.True(t, dec(1000000).Equal(stats.TotalSpent))

	assert.ElementsMatch(t, []string{"order.paid", "order.status"}, f.outboxTopics(t))
}

func TestReconcile_AmountPaidEqualsLogSum(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 1000000)

	events := []notification{
		{stage: model.SettlementStageDown, status: gateway.TransactionSettlement, txID: "a", amount: "250000"},
		{stage: model.SettlementStageDown, status: gateway.TransactionPending, txID: "b", amount: "250000"},
		{stage: model.SettlementStageDown, status: gateway.TransactionSettlement, txID: "a", amount: "250000"},
		{stage: model.SettlementStageClearance, status: gateway.TransactionExpire, txID: "c", amount: "750000"},
		{stage: model.SettlementStageClearance, status: gateway.TransactionSettlement, txID: "d", amount: "750000"},
	}
	for _, ev := range events {
		ev.orderNo = order.OrderNo
		_, err := f.notify(t, ev)
		require.NoError(t, err)
	}

	got := f.reload(t, order.OrderNo)
	sum := dec(0)
	for _, l := range got.PaymentLogs {
		sum = sum.Add(l.Amount)
	}
	assert.True(t, sum.Equal(got.AmountPaid), "sum %s paid %s", sum, got.AmountPaid)
	assert.True(t, dec(1000000).Equal(got.AmountPaid))
}

func TestReconcile_RepeatedDelivery(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d deliveries", n), func(t *testing.T) {
			f := newFixture(t)
			owner := f.user(t, nil, "0")
			order := f.order(t, owner.ID, 500000)

			ev := notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionCapture, fraud: gateway.FraudAccept, txID: "tx-1", amount: "500000.00"}
			for i := 0; i < n; i++ {
				res, err := f.notify(t, ev)
				require.NoError(t, err)
				if i == 0 {
					assert.Equal(t, OutcomeApplied, res.Outcome)
				} else {
					assert.Equal(t, OutcomeDuplicate, res.Outcome)
				}
				assert.Equal(t, model.OrderStatusProcessing, res.OrderStatus)
			}

			got := f.reload(t, order.OrderNo)
			assert.Equal(t, model.OrderStatusProcessing, got.Status)
			assert.True(t, dec(500000).Equal(got.AmountPaid))
			assert.Len(t, got.PaymentLogs, 1)
			assert.Equal(t, int64(1), f.stats(t, owner.ID).TotalOrders)
		})
	}
}

func TestReconcile_ProcessedCacheShortCircuits(t *testing.T) {
	c := newMapCache()
	f := newFixture(t, WithProcessedCache(c))
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 500000)

	ev := notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "500000"}
	_, err := f.notify(t, ev)
	require.NoError(t, err)

	res, err := f.notify(t, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, model.OrderStatusProcessing, res.OrderStatus)
	assert.Equal(t, 1, c.hits)
}

func TestReconcile_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	referrer := f.user(t, nil, "2.5")
	owner := f.user(t, &referrer.ID, "0")
	order := f.order(t, owner.ID, 500000)

	raw := f.payload(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "500000"})

	var wg sync.WaitGroup
	outcomes := make(chan Outcome, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.HandleNotification(context.Background(), raw)
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	applied := 0
	for o := range outcomes {
		if o == OutcomeApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)

	got := f.reload(t, order.OrderNo)
	assert.True(t, dec(500000).Equal(got.AmountPaid))
	assert.Len(t, got.PaymentLogs, 1)
	assert.True(t, dec(12500).Equal(f.stats(t, referrer.ID).TotalReferralEarnings))
}

func TestReconcile_ConcurrentStages(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 1000000)

	dp := f.payload(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageDown, status: gateway.TransactionSettlement, txID: "tx-dp", amount: "300000"})
	clr := f.payload(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageClearance, status: gateway.TransactionSettlement, txID: "tx-clr", amount: "700000"})

	var wg sync.WaitGroup
	for _, raw := range [][]byte{dp, clr, dp, clr} {
		wg.Add(1)
		go func(raw []byte) {
			defer wg.Done()
			_, err := f.svc.HandleNotification(context.Background(), raw)
			assert.NoError(t, err)
		}(raw)
	}
	wg.Wait()

	got := f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusProcessing, got.Status)
	assert.True(t, dec(1000000).Equal(got.AmountPaid))
	assert.Len(t, got.PaymentLogs, 2)
	assert.Equal(t, int64(1), f.stats(t, owner.ID).TotalOrders)
}

func TestReconcile_BenignCancellation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 1000000)

	_, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageDown, status: gateway.TransactionSettlement, txID: "tx-dp", amount: "300000"})
	require.NoError(t, err)

	for _, status := range []gateway.TransactionStatus{gateway.TransactionCancel, gateway.TransactionExpire, gateway.TransactionDeny, gateway.TransactionFailure} {
		res, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageClearance, status: status, txID: "tx-clr-" + string(status), amount: "700000"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome)
		assert.Equal(t, model.OrderStatusPendingPayment, res.OrderStatus)
	}

	got := f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusPendingPayment, got.Status)
	assert.True(t, dec(300000).Equal(got.AmountPaid))
	assert.Len(t, got.PaymentLogs, 1)
}

func TestReconcile_CancelUnpaidOrder(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 1000000)

	res, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageDown, status: gateway.TransactionExpire, txID: "tx-dp", amount: "300000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.OrderStatusCancelled, res.OrderStatus)

	got := f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.True(t, got.AmountPaid.IsZero())
	require.Len(t, got.PaymentLogs, 1)
	assert.True(t, got.PaymentLogs[0].Amount.IsZero())
	assert.Equal(t, "expire", got.PaymentLogs[0].TransactionStatus)

	// 关闭之后的到账转人工，订单不变
	res, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageDown, status: gateway.TransactionSettlement, txID: "tx-late", amount: "300000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReview, res.Outcome)
	got = f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.True(t, got.AmountPaid.IsZero())

	reviews, total, err := f.store.ListReviews(f.ctx, false, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.ReviewReasonLateSettlement, reviews[0].Reason)
}

func TestReconcile_ReferralCommissionOnce(t *testing.T) {
	f := newFixture(t)
	referrer := f.user(t, nil, "2.5")
	owner := f.user(t, &referrer.ID, "0")
	order := f.order(t, owner.ID, 500000)

	_, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageDown, status: gateway.TransactionSettlement, txID: "tx-dp", amount: "200000"})
	require.NoError(t, err)
	assert.True(t, f.stats(t, referrer.ID).TotalReferralEarnings.IsZero())

	_, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageClearance, status: gateway.TransactionSettlement, txID: "tx-clr", amount: "300000"})
	require.NoError(t, err)
	_, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageClearance, status: gateway.TransactionSettlement, txID: "tx-clr", amount: "300000"})
	require.NoError(t, err)

	stats := f.stats(t, referrer.ID)
	assert.True(t, dec(12500).Equal(stats.TotalReferralEarnings), "earnings %s", stats.TotalReferralEarnings)
	assert.Equal(t, int64(1), stats.TotalReferrals)

	// 推荐人自己的消费统计不受影响
	assert.Equal(t, int64(0), stats.TotalOrders)
	assert.Contains(t, f.outboxTopics(t), "referral.commission")
}

func TestReconcile_MissionProgress(t *testing.T) {
	f := newFixture(t)
	orders := f.mission(t, "five-orders", model.MetricOrderCount, 5)
	spent := f.mission(t, "big-spender", model.MetricAmountSpent, 2000000)
	referrals := f.mission(t, "first-referral", model.MetricReferralCount, 1)

	referrer := f.user(t, nil, "2.5")
	owner := f.user(t, &referrer.ID, "0")
	require.NoError(t, f.store.SaveUserMission(f.ctx, &model.UserMission{UserID: owner.ID, MissionID: orders.ID, CurrentProgress: dec(4)}))

	first := f.order(t, owner.ID, 500000)
	_, err := f.notify(t, notification{orderNo: first.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)

	um, err := f.store.GetUserMission(f.ctx, owner.ID, orders.ID)
	require.NoError(t, err)
	assert.True(t, dec(5).Equal(um.CurrentProgress))
	assert.True(t, um.Achieved)
	require.NotNil(t, um.AchievedAt)
	achievedAt := *um.AchievedAt

	// UserMission 不存在时按需创建
	um, err = f.store.GetUserMission(f.ctx, owner.ID, spent.ID)
	require.NoError(t, err)
	assert.True(t, dec(500000).Equal(um.CurrentProgress))
	assert.False(t, um.Achieved)

	um, err = f.store.GetUserMission(f.ctx, referrer.ID, referrals.ID)
	require.NoError(t, err)
	assert.True(t, um.Achieved)

	second := f.order(t, owner.ID, 100)
	_, err = f.notify(t, notification{orderNo: second.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-2", amount: "100"})
	require.NoError(t, err)

	um, err = f.store.GetUserMission(f.ctx, owner.ID, orders.ID)
	require.NoError(t, err)
	assert.True(t, dec(6).Equal(um.CurrentProgress))
	assert.True(t, um.Achieved)
	assert.Equal(t, achievedAt, *um.AchievedAt)

	// 退款不回退进度
	_, err = f.notify(t, notification{orderNo: second.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionRefund, txID: "tx-2", amount: "100"})
	require.NoError(t, err)
	um, err = f.store.GetUserMission(f.ctx, owner.ID, orders.ID)
	require.NoError(t, err)
	assert.True(t, dec(6).Equal(um.CurrentProgress))
	assert.True(t, um.Achieved)
}

func TestReconcile_SignatureRejected(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 500000)

	for _, orderNo := range []string{order.OrderNo, "ORD-does-not-exist"} {
		_, err := f.notify(t, notification{orderNo: orderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "500000", badSig: true})
		assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
	}

	got := f.reload(t, order.OrderNo)
	assert.True(t, got.AmountPaid.IsZero())
	assert.Empty(t, got.PaymentLogs)
}

func TestReconcile_TamperedAmount(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 500000)

	raw := f.payload(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "5000"})
	tampered := []byte(strings.Replace(string(raw), `"gross_amount":"5000"`, `"gross_amount":"500000"`, 1))
	require.NotEqual(t, raw, tampered)

	_, err := f.svc.HandleNotification(f.ctx, tampered)
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}

func TestReconcile_Rejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.notify(t, notification{orderNo: "ORD-missing", stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "1"})
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	ref := "ORD1-HALF"
	raw := []byte(fmt.Sprintf(`{"order_id":%q,"status_code":"200","gross_amount":"1","signature_key":%q,"transaction_status":"settlement","transaction_id":"t"}`,
		ref, f.auth.Sign(ref, "200", "1")))
	_, err = f.svc.HandleNotification(f.ctx, raw)
	assert.ErrorIs(t, err, gateway.ErrMalformedIdentifier)

	_, err = f.svc.HandleNotification(f.ctx, []byte(`not json`))
	assert.ErrorIs(t, err, gateway.ErrInvalidNotification)
}

func TestReconcile_DisabledOrderNotFound(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 500000)
	require.NoError(t, f.store.DisableOrder(f.ctx, order.OrderNo))

	_, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "500000"})
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestReconcile_OverCredit(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 1000000)

	_, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageDown, status: gateway.TransactionSettlement, txID: "tx-dp", amount: "300000"})
	require.NoError(t, err)

	res, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageClearance, status: gateway.TransactionSettlement, txID: "tx-clr", amount: "800000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReview, res.Outcome)

	got := f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusPendingPayment, got.Status)
	assert.True(t, dec(300000).Equal(got.AmountPaid))

	// 重推不会重复写复核记录
	_, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageClearance, status: gateway.TransactionSettlement, txID: "tx-clr", amount: "800000"})
	require.NoError(t, err)

	reviews, total, err := f.store.ListReviews(f.ctx, false, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.ReviewReasonOverCredit, reviews[0].Reason)
	assert.True(t, dec(800000).Equal(reviews[0].Amount))
}

func TestReconcile_FraudChallengeHeld(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 500000)

	res, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionCapture, fraud: gateway.FraudChallenge, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHeld, res.Outcome)

	got := f.reload(t, order.OrderNo)
	assert.True(t, got.AmountPaid.IsZero())
	assert.Empty(t, got.PaymentLogs)
	assert.Equal(t, int64(0), f.stats(t, owner.ID).TotalOrders)

	// 人工放行后网关推送 accept，使用同一个交易号
	res, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, fraud: gateway.FraudAccept, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.OrderStatusProcessing, res.OrderStatus)
}

func TestReconcile_ChallengeThenLateSettlement(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 500000)

	res, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionCapture, fraud: gateway.FraudChallenge, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHeld, res.Outcome)

	res, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageDown, status: gateway.TransactionExpire, txID: "tx-0", amount: "150000"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, res.OrderStatus)

	// 放行的交易落在已关闭的订单上，需要第二条复核记录
	res, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, fraud: gateway.FraudAccept, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReview, res.Outcome)

	reviews, total, err := f.store.ListReviews(f.ctx, false, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	reasons := []string{reviews[0].Reason, reviews[1].Reason}
	assert.ElementsMatch(t, []string{model.ReviewReasonFraudChallenge, model.ReviewReasonLateSettlement}, reasons)

	got := f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.True(t, got.AmountPaid.IsZero())

	// 重复推送不会再生成复核记录
	_, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, fraud: gateway.FraudAccept, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)
	_, total, err = f.store.ListReviews(f.ctx, false, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestReconcile_Refund(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 500000)

	_, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)

	res, err := f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionRefund, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, model.OrderStatusRefunded, res.OrderStatus)

	res, err = f.notify(t, notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionRefund, txID: "tx-1", amount: "500000"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	got := f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusRefunded, got.Status)
	assert.True(t, dec(500000).Equal(got.AmountPaid))
	assert.Len(t, got.PaymentLogs, 2)
	assert.Equal(t, int64(1), f.stats(t, owner.ID).TotalOrders)
}

// failingStore 在事务内让 SaveStatistics 失败，用来验证整体回滚
type failingStore struct {
	*memory.Store
	fail bool
}

func (s *failingStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(&failingTx{Store: tx, fail: s.fail})
	})
}

type failingTx struct {
	repository.Store
	fail bool
}

func (t *failingTx) SaveStatistics(ctx context.Context, stats *model.Statistics) error {
	if t.fail {
		return errors.New("disk full")
	}
	return t.Store.SaveStatistics(ctx, stats)
}

func TestReconcile_RollbackAndRetry(t *testing.T) {
	backing := memory.New()
	wrapped := &failingStore{Store: backing, fail: true}
	f := newFixtureWithStore(t, backing, wrapped)

	owner := f.user(t, nil, "0")
	order := f.order(t, owner.ID, 500000)
	ev := notification{orderNo: order.OrderNo, stage: model.SettlementStageFull, status: gateway.TransactionSettlement, txID: "tx-1", amount: "500000"}

	_, err := f.notify(t, ev)
	require.Error(t, err)

	got := f.reload(t, order.OrderNo)
	assert.Equal(t, model.OrderStatusPendingPayment, got.Status)
	assert.True(t, got.AmountPaid.IsZero())
	assert.Empty(t, got.PaymentLogs)
	assert.Empty(t, f.outboxTopics(t))

	wrapped.fail = false
	res, err := f.notify(t, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, int64(1), f.stats(t, owner.ID).TotalOrders)
}
