package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess             = 0
	CodeParamError          = 1000
	CodeAuthFailed          = 1001
	CodePermissionDenied    = 1002
	CodeResourceNotFound    = 1003
	CodeRateLimited         = 1004
	CodeAlreadyCompleted    = 1006
	CodeConsistencyViolated = 1007
	CodeServerError         = 5000
	CodeTransientError      = 5003
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:             "success",
	CodeParamError:          "参数错误",
	CodeAuthFailed:          "认证失败",
	CodePermissionDenied:    "权限不足",
	CodeResourceNotFound:    "资源不存在",
	CodeRateLimited:         "请求过于频繁",
	CodeAlreadyCompleted:    "评审已完成",
	CodeConsistencyViolated: "数据不一致",
	CodeServerError:         "服务器内部错误",
	CodeTransientError:      "服务暂不可用，请稍后重试",
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Envelope 构造响应体（WebSocket 等非 gin 响应复用）
func Envelope(code int, message string, data interface{}) Response {
	if message == "" {
		message = codeMessages[code]
	}
	return Response{Code: code, Message: message, Data: data}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope(CodeSuccess, "success", data))
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope(CodeSuccess, message, data))
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Envelope(code, message, nil))
}

// ErrorWithData 带附加信息的错误响应
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope(code, message, data))
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// RateLimitError 请求过于频繁
func RateLimitError(c *gin.Context, message string) {
	Error(c, CodeRateLimited, message)
}

// AlreadyCompletedError 评审已完成
func AlreadyCompletedError(c *gin.Context, message string) {
	Error(c, CodeAlreadyCompleted, message)
}

// ConsistencyError 数据不一致
func ConsistencyError(c *gin.Context, message string) {
	Error(c, CodeConsistencyViolated, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// TransientError 可重试的服务端错误
func TransientError(c *gin.Context, message string) {
	Error(c, CodeTransientError, message)
}
