package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 业务错误码
const (
	CodeSuccess       = 0
	CodeBadRequest    = 40000
	CodeUnauthorized  = 40100
	CodeNotFound      = 40400
	CodeConflict      = 40900
	CodeTooMany       = 42900
	CodeInternalError = 50000
	CodeUpstream      = 50200
)

// JSON 以指定 HTTP 状态码写出响应
func JSON(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, CodeSuccess, "success", data)
}

// Created 资源已创建
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, CodeSuccess, "created", data)
}

// Accepted 已受理但结果未完全确认
func Accepted(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusAccepted, CodeSuccess, message, data)
}

// BadRequest 参数错误
func BadRequest(c *gin.Context, message string) {
	JSON(c, http.StatusBadRequest, CodeBadRequest, message, nil)
}

// Unauthorized 未认证
func Unauthorized(c *gin.Context, message string) {
	JSON(c, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

// NotFound 资源不存在
func NotFound(c *gin.Context, message string) {
	JSON(c, http.StatusNotFound, CodeNotFound, message, nil)
}

// Conflict 状态冲突
func Conflict(c *gin.Context, message string) {
	JSON(c, http.StatusConflict, CodeConflict, message, nil)
}

// TooManyRequests 触发限流
func TooManyRequests(c *gin.Context) {
	JSON(c, http.StatusTooManyRequests, CodeTooMany, "too many requests", nil)
}

// BadGateway 上游服务失败
func BadGateway(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusBadGateway, CodeUpstream, message, data)
}

// InternalError 服务器内部错误
func InternalError(c *gin.Context, err error) {
	msg := "internal server error"
	if err != nil && gin.Mode() == gin.DebugMode {
		msg = err.Error()
	}
	JSON(c, http.StatusInternalServerError, CodeInternalError, msg, nil)
}
