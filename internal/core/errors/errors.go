// Package errors 带错误码的错误类型
//
// 错误码用于日志分类和 HTTP 响应映射，
// 同码错误之间 errors.Is 成立，便于与哨兵错误比较。
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 会话与协议
	CodeAuthFailed     ErrorCode = "AUTH_FAILED"
	CodeInvalidMessage ErrorCode = "INVALID_MESSAGE"
	CodeUnknownType    ErrorCode = "UNKNOWN_TYPE"
	CodeHandlerFailure ErrorCode = "HANDLER_FAILURE"

	// 投递
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeCancelled           ErrorCode = "CANCELLED"
	CodeClientNotFound      ErrorCode = "CLIENT_NOT_FOUND"
	CodeClientOffline       ErrorCode = "CLIENT_OFFLINE"
	CodeDestinationNotFound ErrorCode = "DESTINATION_NOT_FOUND"

	// 请求
	CodeInvalidParam ErrorCode = "INVALID_PARAM"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeRateLimited  ErrorCode = "RATE_LIMITED"
	CodeConfigError  ErrorCode = "CONFIG_ERROR"

	// 系统
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeStorageError  ErrorCode = "STORAGE_ERROR"
	CodeServiceClosed ErrorCode = "SERVICE_CLOSED"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// Error 统一错误类型
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New 创建错误
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf 创建格式化错误
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误，err 为 nil 时返回 nil
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf 格式化包装底层错误，err 为 nil 时返回 nil
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// GetCode 取错误链上最外层的错误码，非本包错误返回 CodeInternal
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode 判断错误链上是否存在指定错误码
func IsCode(err error, code ErrorCode) bool {
	return errors.Is(err, &Error{Code: code})
}

var (
	Is = errors.Is
	As = errors.As
)
