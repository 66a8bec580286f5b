package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService 订单查询与履约状态推进。支付引起的状态变化只走 ReconcileService。
type OrderService struct {
	store  repository.Store
	topics config.KafkaTopicConfig
	log    *zap.Logger
}

func NewOrderService(store repository.Store, topics config.KafkaTopicConfig, lgr *zap.Logger) *OrderService {
	if lgr == nil {
		lgr = zap.NewNop()
	}
	return &OrderService{store: store, topics: topics, log: lgr}
}

type OrderLine struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type CreateOrderRequest struct {
	UserID         int64
	CompanyOrderID *int64
	Lines          []OrderLine
}

// CreateOrder 下单，订单以 PENDING_PAYMENT 状态创建
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: 商品不能为空", ErrInvalidOrder)
	}

	order := &model.Order{
		OrderNo:        idgen.GenerateOrderNo(),
		UserID:         req.UserID,
		CompanyOrderID: req.CompanyOrderID,
		Status:         model.OrderStatusPendingPayment,
		Total:          decimal.Zero,
		AmountPaid:     decimal.Zero,
		Enabled:        true,
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 || !line.UnitPrice.IsPositive() {
			return nil, fmt.Errorf("%w: 商品 %d 数量或单价非法", ErrInvalidOrder, line.ProductID)
		}
		p := model.OrderProduct{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		order.Products = append(order.Products, p)
		order.Total = order.Total.Add(p.Subtotal())
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.GetUser(ctx, req.UserID); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_no", order.OrderNo),
		zap.Int64("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)))
	return order, nil
}

// GetUserOrder 只能查看自己的订单，别人的订单与不存在返回同样的错误
func (s *OrderService) GetUserOrder(ctx context.Context, userID int64, orderNo string) (*model.Order, error) {
	order, err := s.store.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID || !order.Enabled {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.store.ListOrdersByUser(ctx, userID, page, pageSize)
}

// AdvanceStatus 履约方推进订单状态：PROCESSING -> READY_TO_SHIP -> SHIPPED -> DELIVERED，
// 或取消一个尚未收到任何款项的订单
func (s *OrderService) AdvanceStatus(ctx context.Context, orderNo, target string) (*model.Order, error) {
	var order *model.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.LockOrder(ctx, orderNo)
		if err != nil {
			return err
		}

		if target == model.OrderStatusCancelled && order.AmountPaid.IsPositive() {
			return fmt.Errorf("%w: 订单已有到账，不能取消", repository.ErrOrderStatusInvalid)
		}

		from := order.Status
		if err := tx.UpdateOrderStatus(ctx, orderNo, from, target); err != nil {
			return err
		}
		order.Status = target

		return writeOutbox(ctx, tx, s.topics.OrderStatus, orderNo, OrderStatusEvent{
			OrderNo:    orderNo,
			UserID:     order.UserID,
			FromStatus: from,
			ToStatus:   target,
			AmountPaid: order.AmountPaid,
			Source:     sourceFulfillment,
			ChangedAt:  time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status advanced", zap.String("order_no", orderNo), zap.String("status", target))
	return order, nil
}

// Disable 软删除，订单不会被物理删除
func (s *OrderService) Disable(ctx context.Context, orderNo string) error {
	if err := s.store.DisableOrder(ctx, orderNo); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return err
		}
		return fmt.Errorf("停用订单失败: %w", err)
	}
	s.log.Info("order disabled", zap.String("order_no", orderNo))
	return nil
}
