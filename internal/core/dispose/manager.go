package dispose

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type namedResource struct {
	name     string
	resource Disposable
}

// ResourceManager 按注册的相反顺序释放资源
type ResourceManager struct {
	mu        sync.Mutex
	resources []namedResource
}

// NewResourceManager 创建资源管理器
func NewResourceManager() *ResourceManager {
	return &ResourceManager{}
}

// Register 注册资源，名称重复时返回错误
func (m *ResourceManager) Register(name string, r Disposable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, nr := range m.resources {
		if nr.name == name {
			return fmt.Errorf("resource %s already registered", name)
		}
	}
	m.resources = append(m.resources, namedResource{name: name, resource: r})
	Debugf("dispose: registered resource %s", name)
	return nil
}

// Names 已注册资源名称，按注册顺序
func (m *ResourceManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.resources))
	for _, nr := range m.resources {
		names = append(names, nr.name)
	}
	return names
}

// DisposeAll 释放全部资源，ctx 到期后停止等待并返回超时错误
func (m *ResourceManager) DisposeAll(ctx context.Context) error {
	m.mu.Lock()
	resources := m.resources
	m.resources = nil
	m.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(resources) - 1; i >= 0; i-- {
			nr := resources[i]
			if err := nr.resource.Dispose(); err != nil {
				Errorf("dispose: resource %s failed: %v", nr.name, err)
				errs = append(errs, fmt.Errorf("%s: %w", nr.name, err))
				continue
			}
			Debugf("dispose: resource %s released", nr.name)
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("dispose timeout: %w", ctx.Err())
	}
}
