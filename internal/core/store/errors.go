package store

import (
	"fmt"
	"strings"

	coreerrors "crystelf-core/internal/core/errors"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = coreerrors.New(coreerrors.CodeNotFound, "record not found")

	// ErrClosed 存储已关闭
	ErrClosed = coreerrors.New(coreerrors.CodeServiceClosed, "store closed")
)

// Error 存储操作错误
type Error struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store %s: %s %s: %v", e.Backend, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("store %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 存储错误同时匹配 STORAGE_ERROR
func (e *Error) Is(target error) bool {
	return target == coreerrors.ErrStorage
}

// NewError 创建存储错误
func NewError(backend, op, key string, err error) error {
	return &Error{Backend: backend, Op: op, Key: key, Err: err}
}

// CacheKey 缓存键，namespace 与 name 以冒号连接
func CacheKey(namespace, name string) string {
	return namespace + ":" + name
}

// IndexKey namespace 在缓存中的记录名集合
//
// namespace 不含 /，因此不会与 CacheKey 冲突。
func IndexKey(namespace string) string {
	return "index/" + namespace
}

// ValidateName 校验 namespace 或记录名，拒绝路径分隔符和空名
func ValidateName(kind, s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "invalid %s %q", kind, s)
	}
	return nil
}
