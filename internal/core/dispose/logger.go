package dispose

import corelog "crystelf-core/internal/core/log"

var logger corelog.Logger

// SetLogger 设置 dispose 内部日志，未设置时使用默认 Logger
func SetLogger(l corelog.Logger) {
	logger = l
}

func current() corelog.Logger {
	if logger != nil {
		return logger
	}
	return corelog.Default()
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }
