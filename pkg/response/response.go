// Package response 统一 HTTP 响应格式
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/retailops/pkg/errorx"
	"github.com/wyfcoding/retailops/pkg/logger"
)

// Body 响应体
type Body struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// PageData 分页数据
type PageData struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// Success 200
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Code: "ok", Message: "success", Data: data})
}

// Created 201
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Code: "ok", Message: "created", Data: data})
}

// Page 分页响应
func Page(c *gin.Context, items any, total int64, page, pageSize int) {
	Success(c, PageData{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// ErrorWithStatus 以指定状态码返回错误
func ErrorWithStatus(c *gin.Context, status int, message, detail string) {
	c.AbortWithStatusJSON(status, Body{Code: codeForStatus(status), Message: message, Detail: detail})
}

// Error 根据错误类别选择状态码；非 errorx 错误一律视为 500，细节只写日志
func Error(c *gin.Context, err error) {
	e, ok := errorx.As(err)
	if !ok {
		logger.Error(c.Request.Context(), "unclassified error", "error", err, "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusInternalServerError, Body{Code: "internal_error", Message: "internal server error"})
		return
	}

	status := StatusOf(e.Kind)
	body := Body{Code: e.Code, Message: e.Message, Retryable: e.Retryable()}
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "error", err, "path", c.FullPath())
		body.Message = "internal server error"
	} else if e.Cause != nil && !errors.Is(e.Cause, e) && e.Kind != errorx.KindConcurrentModification {
		body.Detail = e.Cause.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

// StatusOf 错误类别到 HTTP 状态码
func StatusOf(k errorx.Kind) int {
	switch k {
	case errorx.KindValidation:
		return http.StatusBadRequest
	case errorx.KindNotFound:
		return http.StatusNotFound
	case errorx.KindConcurrentModification:
		return http.StatusConflict
	case errorx.KindPermissionDenied:
		return http.StatusForbidden
	case errorx.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "permission_denied"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal_error"
	}
}
