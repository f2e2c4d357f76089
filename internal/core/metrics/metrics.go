// Package metrics 进程内指标
package metrics

import (
	"sort"
	"strings"
	"sync"
)

// 指标名称
const (
	ConnectionsActive  = "hub_connections_active"
	AuthTotal          = "hub_auth_total"
	MessagesTotal      = "hub_messages_total"
	RequestsTotal      = "hub_requests_total"
	BroadcastScheduled = "hub_broadcast_scheduled_total"
	BroadcastDelivered = "hub_broadcast_delivered_total"
	StoreFallbacks     = "store_durable_fallback_total"
)

// Metrics 指标收集接口
type Metrics interface {
	Inc(name string, labels map[string]string)
	Add(name string, delta float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
	Snapshot() map[string]float64
}

// Memory 基于 map 的指标实现
type Memory struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewMemory 创建内存指标
func NewMemory() *Memory {
	return &Memory{values: make(map[string]float64)}
}

func (m *Memory) Inc(name string, labels map[string]string) {
	m.Add(name, 1, labels)
}

func (m *Memory) Add(name string, delta float64, labels map[string]string) {
	key := Key(name, labels)
	m.mu.Lock()
	m.values[key] += delta
	m.mu.Unlock()
}

func (m *Memory) SetGauge(name string, value float64, labels map[string]string) {
	key := Key(name, labels)
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

// Get 读取单个指标，不存在时为 0
func (m *Memory) Get(name string, labels map[string]string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[Key(name, labels)]
}

// Snapshot 复制当前全部指标
func (m *Memory) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Key 生成 name{k=v,...}，标签按键排序
func Key(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Nop 丢弃所有指标
type Nop struct{}

func (Nop) Inc(string, map[string]string)               {}
func (Nop) Add(string, float64, map[string]string)      {}
func (Nop) SetGauge(string, float64, map[string]string) {}
func (Nop) Snapshot() map[string]float64                { return map[string]float64{} }

var (
	_ Metrics = (*Memory)(nil)
	_ Metrics = Nop{}
)
