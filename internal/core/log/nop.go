package log

import (
	"context"
	"sync"
)

// NopLogger 丢弃所有日志
type NopLogger struct{}

// NewNopLogger 创建静默日志
func NewNopLogger() Logger { return NopLogger{} }

func (NopLogger) Debug(...interface{})                       {}
func (NopLogger) Info(...interface{})                        {}
func (NopLogger) Warn(...interface{})                        {}
func (NopLogger) Error(...interface{})                       {}
func (NopLogger) Debugf(string, ...interface{})              {}
func (NopLogger) Infof(string, ...interface{})               {}
func (NopLogger) Warnf(string, ...interface{})               {}
func (NopLogger) Errorf(string, ...interface{})              {}
func (n NopLogger) WithField(string, interface{}) Logger     { return n }
func (n NopLogger) WithFields(map[string]interface{}) Logger { return n }
func (n NopLogger) WithError(error) Logger                   { return n }
func (n NopLogger) WithContext(context.Context) Logger       { return n }

// TestingT *testing.T 的日志子集
type TestingT interface {
	Logf(format string, args ...interface{})
}

// testSink 测试结束后丢弃日志
type testSink struct {
	mu   sync.Mutex
	t    TestingT
	done bool
}

func (s *testSink) logf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.t.Logf(format, args...)
}

// TestLogger 将日志写入 testing.T，字段追加在行尾
type TestLogger struct {
	sink   *testSink
	fields map[string]interface{}
}

// NewTestLogger 创建测试日志，t 支持 Cleanup 时测试结束即停止输出
func NewTestLogger(t TestingT) Logger {
	sink := &testSink{t: t}
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() {
			sink.mu.Lock()
			sink.done = true
			sink.mu.Unlock()
		})
	}
	return &TestLogger{sink: sink}
}

func (l *TestLogger) emit(level, msg string) {
	if len(l.fields) == 0 {
		l.sink.logf("[%s] %s", level, msg)
		return
	}
	l.sink.logf("[%s] %s %v", level, msg, l.fields)
}

func (l *TestLogger) Debug(args ...interface{}) { l.emit("DEBUG", sprint(args...)) }
func (l *TestLogger) Info(args ...interface{})  { l.emit("INFO", sprint(args...)) }
func (l *TestLogger) Warn(args ...interface{})  { l.emit("WARN", sprint(args...)) }
func (l *TestLogger) Error(args ...interface{}) { l.emit("ERROR", sprint(args...)) }

func (l *TestLogger) Debugf(format string, args ...interface{}) {
	l.emit("DEBUG", sprintf(format, args...))
}
func (l *TestLogger) Infof(format string, args ...interface{}) {
	l.emit("INFO", sprintf(format, args...))
}
func (l *TestLogger) Warnf(format string, args ...interface{}) {
	l.emit("WARN", sprintf(format, args...))
}
func (l *TestLogger) Errorf(format string, args ...interface{}) {
	l.emit("ERROR", sprintf(format, args...))
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{sink: l.sink, fields: merged}
}

func (l *TestLogger) WithError(err error) Logger { return l.WithField("error", err) }

func (l *TestLogger) WithContext(context.Context) Logger { return l }
