// Package memory 进程内的账本实现，用于测试和本地开发（database.driver=memory）。
//
// 事务在一份状态副本上执行，提交时整体替换，失败时丢弃副本。
// 所有事务串行执行，天然满足同一订单串行处理的要求。
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"
)

type userMissionKey struct {
	userID    int64
	missionID int64
}

type state struct {
	seq          int64
	orders       map[int64]model.Order
	orderIDs     map[string]int64
	products     map[int64][]model.OrderProduct
	logs         []model.PaymentLog
	logKeys      map[string]struct{}
	users        map[int64]model.User
	referral     map[string]int64
	stats        map[int64]model.Statistics
	missions     map[int64]model.Mission
	userMissions map[userMissionKey]model.UserMission
	reviews      map[int64]model.PaymentReview
	reviewKeys   map[string]struct{}
	outbox       map[int64]model.OutboxMessage
}

func newState() *state {
	return &state{
		orders:       map[int64]model.Order{},
		orderIDs:     map[string]int64{},
		products:     map[int64][]model.OrderProduct{},
		logKeys:      map[string]struct{}{},
		users:        map[int64]model.User{},
		referral:     map[string]int64{},
		stats:        map[int64]model.Statistics{},
		missions:     map[int64]model.Mission{},
		userMissions: map[userMissionKey]model.UserMission{},
		reviews:      map[int64]model.PaymentReview{},
		reviewKeys:   map[string]struct{}{},
		outbox:       map[int64]model.OutboxMessage{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:          s.seq,
		orders:       maps.Clone(s.orders),
		orderIDs:     maps.Clone(s.orderIDs),
		products:     maps.Clone(s.products),
		logs:         slices.Clone(s.logs),
		logKeys:      maps.Clone(s.logKeys),
		users:        maps.Clone(s.users),
		referral:     maps.Clone(s.referral),
		stats:        maps.Clone(s.stats),
		missions:     maps.Clone(s.missions),
		userMissions: maps.Clone(s.userMissions),
		reviews:      maps.Clone(s.reviews),
		reviewKeys:   maps.Clone(s.reviewKeys),
		outbox:       maps.Clone(s.outbox),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

type Store struct {
	mu *sync.Mutex
	st *state
	tx bool
}

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

// guard 事务内已经持有锁
func (s *Store) guard() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Store{mu: s.mu, st: s.st.clone(), tx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

var _ repository.Store = (*Store)(nil)

// ---------------------------------------------------------------------------
// 订单
// ---------------------------------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, order *model.Order) error {
	defer s.guard()()
	if _, ok := s.st.orderIDs[order.OrderNo]; ok {
		return repository.ErrDuplicateKey
	}
	now := time.Now()
	order.ID = s.st.nextID()
	order.Enabled = true
	order.CreatedAt, order.UpdatedAt = now, now

	products := make([]model.OrderProduct, len(order.Products))
	for i := range order.Products {
		order.Products[i].ID = s.st.nextID()
		order.Products[i].OrderID = order.ID
		products[i] = order.Products[i]
	}
	stored := *order
	stored.Products, stored.PaymentLogs = nil, nil

	s.st.orders[order.ID] = stored
	s.st.orderIDs[order.OrderNo] = order.ID
	s.st.products[order.ID] = products
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderNo string) (*model.Order, error) {
	defer s.guard()()
	id, ok := s.st.orderIDs[orderNo]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	order := s.st.orders[id]
	order.Products = slices.Clone(s.st.products[id])
	for _, l := range s.st.logs {
		if l.OrderID == id {
			order.PaymentLogs = append(order.PaymentLogs, l)
		}
	}
	return &order, nil
}

func (s *Store) LockOrder(_ context.Context, orderNo string) (*model.Order, error) {
	defer s.guard()()
	id, ok := s.st.orderIDs[orderNo]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	order := s.st.orders[id]
	if !order.Enabled {
		return nil, repository.ErrOrderNotFound
	}
	return &order, nil
}

func (s *Store) SaveOrderPayment(_ context.Context, order *model.Order) error {
	defer s.guard()()
	stored, ok := s.st.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	stored.Status = order.Status
	stored.AmountPaid = order.AmountPaid
	stored.PaidAt = order.PaidAt
	stored.UpdatedAt = time.Now()
	s.st.orders[order.ID] = stored
	return nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderNo, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return repository.ErrOrderStatusInvalid
	}
	defer s.guard()()
	id, ok := s.st.orderIDs[orderNo]
	if !ok {
		return repository.ErrOrderStatusInvalid
	}
	stored := s.st.orders[id]
	if !stored.Enabled || stored.Status != fromStatus {
		return repository.ErrOrderStatusInvalid
	}
	stored.Status = toStatus
	stored.UpdatedAt = time.Now()
	s.st.orders[id] = stored
	return nil
}

func (s *Store) DisableOrder(_ context.Context, orderNo string) error {
	defer s.guard()()
	id, ok := s.st.orderIDs[orderNo]
	if !ok {
		return repository.ErrOrderNotFound
	}
	stored := s.st.orders[id]
	stored.Enabled = false
	s.st.orders[id] = stored
	return nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	defer s.guard()()
	var all []*model.Order
	for _, o := range s.st.orders {
		if o.UserID == userID && o.Enabled {
			o := o
			all = append(all, &o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page, pageSize), int64(len(all)), nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	offset, limit := repository.PageOffset(page, pageSize)
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ---------------------------------------------------------------------------
// 支付流水
// ---------------------------------------------------------------------------

func (s *Store) PaymentLogExists(_ context.Context, eventKey string) (bool, error) {
	defer s.guard()()
	_, ok := s.st.logKeys[eventKey]
	return ok, nil
}

func (s *Store) AppendPaymentLog(_ context.Context, log *model.PaymentLog) error {
	defer s.guard()()
	if _, ok := s.st.logKeys[log.EventKey]; ok {
		return repository.ErrDuplicateEvent
	}
	log.ID = s.st.nextID()
	log.CreatedAt = time.Now()
	s.st.logs = append(s.st.logs, *log)
	s.st.logKeys[log.EventKey] = struct{}{}
	return nil
}
