package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ctxUserID    = "user_id"
	ctxRole      = "role"
	ctxActor     = "actor"
	ctxRequestID = "request_id"

	headerRequestID = "X-Request-ID"
	roleAdmin       = "admin"
)

// RequestIDMiddleware 透传或生成请求 ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// LoggerMiddleware 访问日志
func LoggerMiddleware(lgr *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}
		lgr.Info("request",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("request_id", c.GetString(ctxRequestID)),
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware(lgr *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				lgr.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))
				response.ServerError(c, "服务器内部错误")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimiter 按客户端 IP 的令牌桶
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (l *RateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now

	// 顺带清理长时间不活跃的 IP
	if len(l.limiters) > 1024 {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.limiters, k)
			}
		}
	}
	return entry.limiter
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}

// AuthMiddleware 校验 Bearer JWT（HMAC），把 user_id、role 写入上下文
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Unauthorized(c, "缺少访问令牌")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || secret == "" {
			response.Unauthorized(c, "访问令牌无效")
			return
		}

		userID, err := claimUserID(claims["user_id"])
		if err != nil {
			response.Unauthorized(c, "访问令牌缺少 user_id")
			return
		}
		role, _ := claims["role"].(string)
		actor, _ := claims["sub"].(string)
		if actor == "" {
			actor = strconv.FormatInt(userID, 10)
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, role)
		c.Set(ctxActor, actor)
		c.Next()
	}
}

// RequireRole 必须在 AuthMiddleware 之后使用
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != role {
			response.Forbidden(c, "权限不足")
			return
		}
		c.Next()
	}
}

// user_id 可以是数字或数字字符串
func claimUserID(v interface{}) (int64, error) {
	switch id := v.(type) {
	case float64:
		if id <= 0 || id != float64(int64(id)) {
			return 0, fmt.Errorf("invalid user_id %v", id)
		}
		return int64(id), nil
	case string:
		return strconv.ParseInt(id, 10, 64)
	}
	return 0, fmt.Errorf("invalid user_id %v", v)
}
