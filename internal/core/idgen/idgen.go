// Package idgen 连接与请求关联 ID 生成
package idgen

import "github.com/google/uuid"

const (
	// PrefixConnection 连接 ID 前缀
	PrefixConnection = "conn_"
)

// Generator ID 生成器
type Generator interface {
	Next() string
}

// UUIDGenerator 生成 UUID v7，生成失败时回退到 v4
type UUIDGenerator struct {
	prefix string
}

// NewUUIDGenerator 创建 UUID 生成器，prefix 可为空
func NewUUIDGenerator(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: prefix}
}

// Next 生成新 ID
func (g *UUIDGenerator) Next() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return g.prefix + id.String()
}

// Func 函数适配为 Generator
type Func func() string

func (f Func) Next() string { return f() }

var _ Generator = (*UUIDGenerator)(nil)
