package handler

import (
	"net/http"

	"storefront/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, cfg *config.Config, lgr *zap.Logger) *gin.Engine {
	if lgr == nil {
		lgr = zap.NewNop()
	}
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(RecoveryMiddleware(lgr))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(lgr.Named("http")))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		limiter := NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		payments := api.Group("/payments")
		{
			payments.POST("/notification", limiter.Middleware(), h.Notification)
			payments.GET("/notification", h.NotificationProbe)
		}

		authed := api.Group("", AuthMiddleware(cfg.Auth.JWTSecret))

		me := authed.Group("/users/me")
		{
			me.GET("/statistics", h.GetStatistics)
			me.GET("/referral", h.GetReferral)
			me.GET("/missions", h.GetMissions)
		}

		orders := authed.Group("/orders")
		{
			orders.GET("", h.ListOrders)
			orders.GET("/:orderNo", h.GetOrder)
		}

		admin := authed.Group("/admin", RequireRole(roleAdmin))
		{
			admin.POST("/orders", h.CreateOrder)
			admin.POST("/orders/:orderNo/status", h.AdvanceStatus)
			admin.POST("/orders/:orderNo/disable", h.DisableOrder)
			admin.GET("/reviews", h.ListReviews)
			admin.POST("/reviews/:id/resolve", h.ResolveReview)
			admin.POST("/reviews/:id/recheck", h.RecheckReview)
			admin.POST("/users", h.RegisterUser)
			admin.POST("/missions", h.CreateMission)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
