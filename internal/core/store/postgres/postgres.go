// Package postgres PostgreSQL 持久化存储
//
// 所有 namespace 共用一张表，记录以 JSONB 保存：
//
//	(namespace TEXT, name TEXT, data JSONB, updated_at TIMESTAMPTZ)
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const backend = "postgres"

// Config 连接配置
type Config struct {
	DSN            string
	Table          string
	MaxConns       int32
	ConnectTimeout time.Duration
	Logger         corelog.Logger
}

// Store 基于 pgxpool 的 DurableStore
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// New 连接数据库并建表
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	if cfg.Table == "" {
		cfg.Table = "state_records"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = corelog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, store.NewError(backend, "connect", "", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, store.NewError(backend, "ping", "", err)
	}

	s := &Store{pool: pool, table: pgx.Identifier{cfg.Table}.Sanitize()}
	if err := s.migrate(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	cfg.Logger.Infof("postgres: durable store ready (table=%s)", cfg.Table)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			namespace  TEXT        NOT NULL,
			name       TEXT        NOT NULL,
			data       JSONB       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, name)
		)`)
	if err != nil {
		return store.NewError(backend, "migrate", s.table, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, namespace, name string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM `+s.table+` WHERE namespace = $1 AND name = $2`,
		namespace, name).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(backend, "read", store.CacheKey(namespace, name), err)
	}
	return data, nil
}

func (s *Store) Write(ctx context.Context, namespace, name string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (namespace, name, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (namespace, name) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		namespace, name, string(data))
	if err != nil {
		return store.NewError(backend, "write", store.CacheKey(namespace, name), err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name FROM `+s.table+` WHERE namespace = $1 ORDER BY name`, namespace)
	if err != nil {
		return nil, store.NewError(backend, "list", namespace, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, store.NewError(backend, "list", namespace, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return store.NewError(backend, "ping", "", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ store.DurableStore = (*Store)(nil)
