package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=../mocks/mock_handler.go -package=mocks storefront/internal/handler Reconciler,OrderService,UserService,ReviewService

type Reconciler interface {
	HandleNotification(ctx context.Context, raw []byte) (*service.NotificationResult, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*model.Order, error)
	GetUserOrder(ctx context.Context, userID int64, orderNo string) (*model.Order, error)
	ListUserOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error)
	AdvanceStatus(ctx context.Context, orderNo, target string) (*model.Order, error)
	Disable(ctx context.Context, orderNo string) error
}

type UserService interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*model.User, error)
	Statistics(ctx context.Context, userID int64) (*model.Statistics, error)
	Referral(ctx context.Context, userID int64) (*service.ReferralSummary, error)
	Missions(ctx context.Context, userID int64) ([]service.MissionProgress, error)
	CreateMission(ctx context.Context, m *model.Mission) error
}

type ReviewService interface {
	List(ctx context.Context, resolved bool, page, pageSize int) ([]*model.PaymentReview, int64, error)
	Resolve(ctx context.Context, id int64, actor, note string) (*model.PaymentReview, error)
	Recheck(ctx context.Context, id int64) (*gateway.TransactionState, error)
}

// maxNotificationSize 网关回调报文上限
const maxNotificationSize = 1 << 20

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	reconciler Reconciler
	orders     OrderService
	users      UserService
	reviews    ReviewService
	log        *zap.Logger
}

func NewHandler(reconciler Reconciler, orders OrderService, users UserService, reviews ReviewService, lgr *zap.Logger) *Handler {
	if lgr == nil {
		lgr = zap.NewNop()
	}
	return &Handler{
		reconciler: reconciler,
		orders:     orders,
		users:      users,
		reviews:    reviews,
		log:        lgr,
	}
}

// ============================================================
// 支付网关回调
// ============================================================

// Notification 网关推送的交易状态通知
// POST /api/v1/payments/notification
//
// 返回非 2xx 时网关会重推：验签失败、报文非法、订单不存在都不应被重推成功，
// 内部错误时事务已回滚，重推是安全的。
func (h *Handler) Notification(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxNotificationSize))
	if err != nil {
		notificationError(c, http.StatusBadRequest, "读取请求体失败")
		return
	}

	result, err := h.reconciler.HandleNotification(c.Request.Context(), raw)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"orderStatus":       result.OrderStatus,
			"transactionStatus": result.TransactionStatus,
		})
	case errors.Is(err, gateway.ErrInvalidSignature):
		notificationError(c, http.StatusForbidden, "签名校验失败")
	case errors.Is(err, gateway.ErrInvalidNotification), errors.Is(err, gateway.ErrMalformedIdentifier):
		notificationError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		notificationError(c, http.StatusNotFound, "订单不存在")
	default:
		h.log.Error("notification failed", zap.Error(err), zap.String("request_id", c.GetString(ctxRequestID)))
		notificationError(c, http.StatusInternalServerError, "服务器内部错误")
	}
}

// NotificationProbe 网关配置回调地址时的连通性检查
// GET /api/v1/payments/notification
func (h *Handler) NotificationProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func notificationError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

// ============================================================
// 用户接口
// ============================================================

// GetStatistics 当前用户的累计数据
// GET /api/v1/users/me/statistics
func (h *Handler) GetStatistics(c *gin.Context) {
	stats, err := h.users.Statistics(c.Request.Context(), c.GetInt64(ctxUserID))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, stats)
}

// GetReferral 推荐码与推荐收益
// GET /api/v1/users/me/referral
func (h *Handler) GetReferral(c *gin.Context) {
	summary, err := h.users.Referral(c.Request.Context(), c.GetInt64(ctxUserID))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, summary)
}

// GetMissions 任务进度
// GET /api/v1/users/me/missions
func (h *Handler) GetMissions(c *gin.Context) {
	missions, err := h.users.Missions(c.Request.Context(), c.GetInt64(ctxUserID))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, missions)
}

// GetOrder 查询订单详情，只能查看自己的订单
// GET /api/v1/orders/:orderNo
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetUserOrder(c.Request.Context(), c.GetInt64(ctxUserID), c.Param("orderNo"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrders 查询当前用户订单列表
// GET /api/v1/orders?page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	page, pageSize := pagination(c)
	orders, total, err := h.orders.ListUserOrders(c.Request.Context(), c.GetInt64(ctxUserID), page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, response.PageData{List: orders, Total: total, Page: page, PageSize: pageSize})
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// fail 把服务层错误映射为 HTTP 响应
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		response.NotFound(c, response.CodeOrderNotFound, "订单不存在")
	case errors.Is(err, repository.ErrUserNotFound):
		response.NotFound(c, response.CodeUserNotFound, "用户不存在")
	case errors.Is(err, repository.ErrReviewNotFound):
		response.NotFound(c, response.CodeReviewNotFound, "复核记录不存在")
	case errors.Is(err, repository.ErrOrderStatusInvalid):
		response.Conflict(c, response.CodeOrderStatusInvalid, err.Error())
	case errors.Is(err, repository.ErrDuplicateKey):
		response.Conflict(c, response.CodeBusinessError, "记录已存在")
	case errors.Is(err, service.ErrReviewResolved):
		response.Conflict(c, response.CodeReviewResolved, err.Error())
	case errors.Is(err, service.ErrInvalidReferralCode):
		response.BusinessError(c, response.CodeInvalidReferral, err.Error())
	case errors.Is(err, service.ErrInvalidMission):
		response.BusinessError(c, response.CodeInvalidMission, err.Error())
	case errors.Is(err, service.ErrInvalidOrder):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrGatewayUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeGatewayUnavailable, err.Error())
	default:
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err))
		response.ServerError(c, "服务器内部错误")
	}
}
