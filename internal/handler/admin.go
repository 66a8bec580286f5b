package handler

import (
	"strconv"

	"storefront/internal/model"
	"storefront/internal/service"
	"storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// ============================================================
// 订单管理
// ============================================================

type OrderLineRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice string `json:"unit_price" binding:"required"`
}

type CreateOrderRequest struct {
	UserID         int64              `json:"user_id" binding:"required"`
	CompanyOrderID *int64             `json:"company_order_id"`
	Lines          []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CreateOrder 代用户下单
// POST /api/v1/admin/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	serviceReq := &service.CreateOrderRequest{
		UserID:         req.UserID,
		CompanyOrderID: req.CompanyOrderID,
	}
	for _, line := range req.Lines {
		price, err := parseDecimal(line.UnitPrice)
		if err != nil {
			response.ParamError(c, "unit_price 参数错误")
			return
		}
		serviceReq.Lines = append(serviceReq.Lines, service.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), serviceReq)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no": order.OrderNo,
		"status":   order.Status,
		"total":    order.Total,
	})
}

// AdvanceStatus 履约方推进订单状态
// POST /api/v1/admin/orders/:orderNo/status
func (h *Handler) AdvanceStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orders.AdvanceStatus(c.Request.Context(), c.Param("orderNo"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no": order.OrderNo,
		"status":   order.Status,
	})
}

// DisableOrder 停用订单
// POST /api/v1/admin/orders/:orderNo/disable
func (h *Handler) DisableOrder(c *gin.Context) {
	if err := h.orders.Disable(c.Request.Context(), c.Param("orderNo")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"message": "订单已停用",
	})
}

// ============================================================
// 人工复核
// ============================================================

// ListReviews 复核队列
// GET /api/v1/admin/reviews?resolved=false&page=1&page_size=10
func (h *Handler) ListReviews(c *gin.Context) {
	resolved, _ := strconv.ParseBool(c.DefaultQuery("resolved", "false"))
	page, pageSize := pagination(c)

	reviews, total, err := h.reviews.List(c.Request.Context(), resolved, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, response.PageData{List: reviews, Total: total, Page: page, PageSize: pageSize})
}

// ResolveReview 记录复核结论
// POST /api/v1/admin/reviews/:id/resolve
func (h *Handler) ResolveReview(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}
	var req struct {
		Note string `json:"note" binding:"required,max=512"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	review, err := h.reviews.Resolve(c.Request.Context(), id, c.GetString(ctxActor), req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, review)
}

// RecheckReview 向网关回查交易状态
// POST /api/v1/admin/reviews/:id/recheck
func (h *Handler) RecheckReview(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	state, err := h.reviews.Recheck(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, state)
}

// ============================================================
// 用户与任务
// ============================================================

type RegisterUserRequest struct {
	ReferralCode string `json:"referral_code"`
	ReferrerRate string `json:"referrer_rate"`
	DiscountRate string `json:"discount_rate"`
}

// RegisterUser 创建用户
// POST /api/v1/admin/users
func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	serviceReq := &service.RegisterRequest{ReferralCode: req.ReferralCode}
	if req.ReferrerRate != "" {
		rate, err := parseDecimal(req.ReferrerRate)
		if err != nil || rate.IsNegative() {
			response.ParamError(c, "referrer_rate 参数错误")
			return
		}
		serviceReq.ReferrerRate = &rate
	}
	discount, err := parseDecimal(req.DiscountRate)
	if err != nil || discount.IsNegative() {
		response.ParamError(c, "discount_rate 参数错误")
		return
	}
	serviceReq.DiscountRate = discount

	user, err := h.users.Register(c.Request.Context(), serviceReq)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user)
}

type CreateMissionRequest struct {
	Code        string         `json:"code" binding:"required,max=64"`
	Title       string         `json:"title" binding:"required,max=128"`
	MetricType  string         `json:"metric_type" binding:"required"`
	TargetValue string         `json:"target_value" binding:"required"`
	Reward      datatypes.JSON `json:"reward"`
	Active      *bool          `json:"active"`
}

// CreateMission 新建任务
// POST /api/v1/admin/missions
func (h *Handler) CreateMission(c *gin.Context) {
	var req CreateMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	target, err := parseDecimal(req.TargetValue)
	if err != nil {
		response.ParamError(c, "target_value 参数错误")
		return
	}

	mission := &model.Mission{
		Code:        req.Code,
		Title:       req.Title,
		MetricType:  req.MetricType,
		TargetValue: target,
		Reward:      req.Reward,
		Active:      req.Active == nil || *req.Active,
	}
	if err := h.users.CreateMission(c.Request.Context(), mission); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, mission)
}
