package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/infrastructure/lock"
	"storefront/internal/model"
	"storefront/internal/reconcile"
	"storefront/internal/repository"
	"storefront/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testServerKey = "SB-Mid-server-test"

var testTopics = config.KafkaTopicConfig{
	OrderPaid:          "order.paid",
	OrderStatus:        "order.status",
	ReferralCommission: "referral.commission",
}

type fixture struct {
	ctx   context.Context
	store *memory.Store
	auth  *gateway.Authenticator
	svc   *ReconcileService
}

func newFixture(t *testing.T, options ...ReconcileOption) *fixture {
	t.Helper()
	store := memory.New()
	return newFixtureWithStore(t, store, store, options...)
}

// newFixtureWithStore backing 用于断言，svcStore 交给被测服务（可以是包装过的）
func newFixtureWithStore(t *testing.T, backing *memory.Store, svcStore repository.Store, options ...ReconcileOption) *fixture {
	t.Helper()
	auth := gateway.NewAuthenticator(testServerKey)
	opts := append([]ReconcileOption{
		WithTopics(testTopics),
		WithPolicy(reconcile.Policy{OverCreditTolerance: decimal.Zero}),
	}, options...)
	return &fixture{
		ctx:   context.Background(),
		store: backing,
		auth:  auth,
		svc:   NewReconcileService(svcStore, auth, lock.NewLocalLocker(), opts...),
	}
}

func (f *fixture) user(t *testing.T, referredBy *int64, rate string) *model.User {
	t.Helper()
	u := &model.User{
		ReferralCode: "REF-" + randSuffix(),
		ReferredByID: referredBy,
		ReferrerRate: decimal.RequireFromString(rate),
	}
	require.NoError(t, f.store.CreateUser(f.ctx, u))
	return u
}

var (
	suffixMu sync.Mutex
	suffixN  int64
)

func randSuffix() string {
	suffixMu.Lock()
	defer suffixMu.Unlock()
	suffixN++
	return decimal.NewFromInt(suffixN).String()
}

func (f *fixture) order(t *testing.T, userID int64, total int64) *model.Order {
	t.Helper()
	o := &model.Order{
		OrderNo:    "ORD" + randSuffix(),
		UserID:     userID,
		Status:     model.OrderStatusPendingPayment,
		Total:      decimal.NewFromInt(total),
		AmountPaid: decimal.Zero,
		Products: []model.OrderProduct{
			{ProductID: 1, Name: "item", Quantity: 1, UnitPrice: decimal.NewFromInt(total)},
		},
	}
	require.NoError(t, f.store.CreateOrder(f.ctx, o))
	return o
}

func (f *fixture) mission(t *testing.T, code, metric string, target int64) *model.Mission {
	t.Helper()
	m := &model.Mission{
		Code:        code,
		Title:       code,
		MetricType:  metric,
		TargetValue: decimal.NewFromInt(target),
		Active:      true,
	}
	require.NoError(t, f.store.CreateMission(f.ctx, m))
	return m
}

type notification struct {
	orderNo string
	stage   string
	status  gateway.TransactionStatus
	fraud   gateway.FraudStatus
	txID    string
	amount  string
	badSig  bool
}

var stageCodes = map[string]string{
	model.SettlementStageDown:      "DP",
	model.SettlementStageFull:      "FULL",
	model.SettlementStageClearance: "CLR",
}

func (f *fixture) payload(t *testing.T, n notification) []byte {
	t.Helper()
	ref := n.orderNo + "-" + stageCodes[n.stage]

	sig := f.auth.Sign(ref, "200", n.amount)
	if n.badSig {
		sig = gateway.NewAuthenticator("someone-else").Sign(ref, "200", n.amount)
	}
	body := map[string]string{
		"order_id":           ref,
		"status_code":        "200",
		"gross_amount":       n.amount,
		"signature_key":      sig,
		"transaction_status": string(n.status),
		"payment_type":       "bank_transfer",
		"transaction_id":     n.txID,
		"transaction_time":   "2024-05-01 10:00:00",
	}
	if n.fraud != "" {
		body["fraud_status"] = string(n.fraud)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func (f *fixture) notify(t *testing.T, n notification) (*NotificationResult, error) {
	t.Helper()
	return f.svc.HandleNotification(f.ctx, f.payload(t, n))
}

func (f *fixture) reload(t *testing.T, orderNo string) *model.Order {
	t.Helper()
	o, err := f.store.GetOrder(f.ctx, orderNo)
	require.NoError(t, err)
	return o
}

func (f *fixture) stats(t *testing.T, userID int64) *model.Statistics {
	t.Helper()
	s, err := f.store.GetStatistics(f.ctx, userID)
	if errors.Is(err, repository.ErrStatisticsNotFound) {
		return &model.Statistics{UserID: userID}
	}
	require.NoError(t, err)
	return s
}

func (f *fixture) outboxTopics(t *testing.T) []string {
	t.Helper()
	msgs, err := f.store.GetPendingMessages(f.ctx, 1000)
	require.NoError(t, err)
	topics := make([]string, 0, len(msgs))
	for _, m := range msgs {
		topics = append(topics, m.Topic)
	}
	return topics
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// mapCache 进程内的 ProcessedCache
type mapCache struct {
	mu   sync.Mutex
	keys map[string]bool
	hits int
}

func newMapCache() *mapCache {
	return &mapCache{keys: map[string]bool{}}
}

func (c *mapCache) Seen(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[key] {
		c.hits++
		return true, nil
	}
	return false, nil
}

func (c *mapCache) Mark(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = true
	return nil
}
