package log

import (
	"fmt"
	"os"
)

func sprint(args ...interface{}) string { return fmt.Sprint(args...) }

func sprintf(format string, args ...interface{}) string { return fmt.Sprintf(format, args...) }

func Debugf(format string, args ...interface{}) { Default().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Default().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Default().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Default().Errorf(format, args...) }

// WithField 默认 Logger 附加字段
func WithField(key string, value interface{}) Logger { return Default().WithField(key, value) }

// WithError 默认 Logger 附加错误
func WithError(err error) Logger { return Default().WithError(err) }

// Fatalf 记录错误并以状态码 1 退出，仅用于启动阶段
func Fatalf(format string, args ...interface{}) {
	Default().Errorf(format, args...)
	os.Exit(1)
}
