package errors

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrAuthFailed          = New(CodeAuthFailed, "authentication failed")
	ErrInvalidMessage      = New(CodeInvalidMessage, "invalid message format")
	ErrUnknownType         = New(CodeUnknownType, "unknown message type")
	ErrHandlerFailure      = New(CodeHandlerFailure, "handler failure")
	ErrTimeout             = New(CodeTimeout, "request timeout")
	ErrCancelled           = New(CodeCancelled, "request cancelled")
	ErrClientNotFound      = New(CodeClientNotFound, "client not found")
	ErrClientOffline       = New(CodeClientOffline, "client offline")
	ErrDestinationNotFound = New(CodeDestinationNotFound, "destination not found")
	ErrInvalidParam        = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized        = New(CodeUnauthorized, "unauthorized")
	ErrRateLimited         = New(CodeRateLimited, "rate limit exceeded")
	ErrStorage             = New(CodeStorageError, "storage error")
	ErrServiceClosed       = New(CodeServiceClosed, "service closed")
)
