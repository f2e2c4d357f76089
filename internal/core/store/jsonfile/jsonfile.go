// Package jsonfile 本地 JSON 文件持久化
//
// 记录保存在 <dir>/<namespace>/<name>.json，内容为缩进格式的 JSON。
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"crystelf-core/internal/core/store"
)

const (
	backend = "jsonfile"
	ext     = ".json"
)

// Store 文件持久化存储
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New 创建存储并确保根目录存在
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("jsonfile: data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, store.NewError(backend, "init", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir 根目录
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(namespace, name string) (string, error) {
	if err := store.ValidateName("namespace", namespace); err != nil {
		return "", err
	}
	if err := store.ValidateName("name", name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, namespace, name+ext), nil
}

func (s *Store) Read(_ context.Context, namespace, name string) ([]byte, error) {
	p, err := s.path(namespace, name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(p)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(backend, "read", p, err)
	}
	return data, nil
}

// Write 以临时文件加重命名的方式写入
func (s *Store) Write(_ context.Context, namespace, name string, data []byte) error {
	p, err := s.path(namespace, name)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return store.NewError(backend, "write", p, fmt.Errorf("invalid json: %w", err))
	}
	pretty.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return store.NewError(backend, "write", p, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "."+name+"-*.tmp")
	if err != nil {
		return store.NewError(backend, "write", p, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(pretty.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return store.NewError(backend, "write", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return store.NewError(backend, "write", p, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return store.NewError(backend, "write", p, err)
	}
	return nil
}

func (s *Store) List(_ context.Context, namespace string) ([]string, error) {
	if err := store.ValidateName("namespace", namespace); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.dir, namespace)

	s.mu.RLock()
	entries, err := os.ReadDir(dir)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, store.NewError(backend, "list", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, ext))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return store.NewError(backend, "ping", s.dir, err)
	}
	if !info.IsDir() {
		return store.NewError(backend, "ping", s.dir, fmt.Errorf("not a directory"))
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

var _ store.DurableStore = (*Store)(nil)
