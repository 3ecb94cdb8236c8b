// Package errorx 定义业务错误分类。
//
// 所有跨层返回的业务错误都是 *Error，调用方通过 KindOf 或 errors.Is 判断类别，
// 接口层据此映射 HTTP 状态码。
package errorx

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation 输入不合法
	KindValidation
	// KindNotFound 引用的实体不存在
	KindNotFound
	// KindConcurrentModification 行锁等待超时或死锁，可重试
	KindConcurrentModification
	// KindPermissionDenied 调用方无权执行该操作
	KindPermissionDenied
	// KindUnauthenticated 缺少或无效的凭证
	KindUnauthenticated
	// KindPersistence 存储层故障
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConcurrentModification:
		return "concurrent_modification"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error 业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is 按 Kind+Code 匹配，使哨兵错误在携带不同 Cause 时依然可比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Retryable 并发冲突类错误可由调用方重试
func (e *Error) Retryable() bool {
	return e.Kind == KindConcurrentModification
}

// WithCause 复制错误并附加原因
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithMessage 复制错误并替换描述
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func PermissionDenied(msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Code: "permission_denied", Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: "unauthenticated", Message: msg}
}

func ConcurrentModification(cause error) *Error {
	return &Error{Kind: KindConcurrentModification, Code: "concurrent_modification", Message: "resource is locked by another transaction, retry later", Cause: cause}
}

func Persistence(cause error) *Error {
	return &Error{Kind: KindPersistence, Code: "persistence_error", Message: "storage failure", Cause: cause}
}

// KindOf 返回错误链上第一个 *Error 的类别
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As 取出错误链上的 *Error
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
