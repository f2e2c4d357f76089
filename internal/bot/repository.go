package bot

import (
	"context"
	"errors"
	"fmt"

	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/store"
	"crystelf-core/internal/core/store/state"
)

// Repository 拓扑记录读写，每个客户端一条记录，整体覆盖
type Repository struct {
	state  *state.Store
	logger corelog.Logger
}

// NewRepository 创建仓库
func NewRepository(s *state.Store, logger corelog.Logger) *Repository {
	if logger == nil {
		logger = corelog.Default()
	}
	return &Repository{state: s, logger: logger}
}

// Save 覆盖客户端的机器人列表
func (r *Repository) Save(ctx context.Context, clientID string, bots []Record) error {
	if bots == nil {
		bots = []Record{}
	}
	return r.state.Persist(ctx, Namespace, clientID, bots)
}

// Load 读取客户端的机器人列表
func (r *Repository) Load(ctx context.Context, clientID string) ([]Record, error) {
	var bots []Record
	if err := r.state.Fetch(ctx, Namespace, clientID, &bots); err != nil {
		return nil, err
	}
	return bots, nil
}

// All 全部客户端的上报记录，按 clientID 排序；单条读取失败时跳过
func (r *Repository) All(ctx context.Context) ([]ClientBots, error) {
	names, err := r.state.Names(ctx, Namespace)
	if err != nil {
		return nil, fmt.Errorf("list bot records: %w", err)
	}
	out := make([]ClientBots, 0, len(names))
	for _, name := range names {
		bots, err := r.Load(ctx, name)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				r.logger.Errorf("bot: read records of %s failed: %v", name, err)
			}
			continue
		}
		out = append(out, ClientBots{ClientID: name, Bots: bots})
	}
	return out, nil
}

// BotIDs 所有已上报机器人的 uin，按上报顺序去重
func (r *Repository) BotIDs(ctx context.Context) ([]int64, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, cb := range all {
		for _, b := range cb.Bots {
			if _, ok := seen[b.UIN]; ok {
				continue
			}
			seen[b.UIN] = struct{}{}
			ids = append(ids, b.UIN)
		}
	}
	return ids, nil
}
