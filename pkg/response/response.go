package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeTooMany       = 429
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeOrderNotFound      = 1001
	CodeOrderStatusInvalid = 1002
	CodeUserNotFound       = 1003
	CodeInvalidReferral    = 1004
	CodeReviewNotFound     = 1005
	CodeReviewResolved     = 1006
	CodeGatewayUnavailable = 1007
	CodeInvalidMission     = 1008
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页列表
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 业务码放在 body，HTTP 状态码表达错误类别
func Error(c *gin.Context, httpStatus, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

func TooManyRequests(c *gin.Context) {
	Error(c, http.StatusTooManyRequests, CodeTooMany, "请求过于频繁")
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnprocessableEntity, code, message)
}
