package bot

import (
	"context"
	"errors"
	"sort"
	"time"

	coreerrors "crystelf-core/internal/core/errors"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
	"crystelf-core/internal/hub"
	"crystelf-core/internal/utils/random"
)

const (
	DefaultMinDelay = 10 * time.Second
	DefaultMaxDelay = 150 * time.Second
)

// Messenger 向已连接客户端投递消息，由 hub.Registry 实现
type Messenger interface {
	Send(clientID string, msg *hub.Message) bool
	SendAndWait(ctx context.Context, clientID string, msg *hub.Message, timeout time.Duration) (*hub.Message, error)
}

var _ Messenger = (*hub.Registry)(nil)

// ServiceConfig 服务配置
type ServiceConfig struct {
	Repository     *Repository
	Messenger      Messenger
	Scheduler      Scheduler
	Random         random.Source
	MinDelay       time.Duration
	MaxDelay       time.Duration
	RequestTimeout time.Duration
	Logger         corelog.Logger
	Metrics        metrics.Metrics
}

// Service 根据上报拓扑定位投递目标
type Service struct {
	repo           *Repository
	messenger      Messenger
	scheduler      Scheduler
	rnd            random.Source
	minDelay       time.Duration
	maxDelay       time.Duration
	requestTimeout time.Duration
	logger         corelog.Logger
	metrics        metrics.Metrics
}

// Planned 一次已排期的广播投递
type Planned struct {
	GroupID  int64         `json:"groupId"`
	ClientID string        `json:"clientId"`
	BotID    int64         `json:"botId"`
	Delay    time.Duration `json:"-"`
}

// NewService 创建服务
func NewService(cfg *ServiceConfig) *Service {
	s := &Service{
		repo:           cfg.Repository,
		messenger:      cfg.Messenger,
		scheduler:      cfg.Scheduler,
		rnd:            cfg.Random,
		minDelay:       cfg.MinDelay,
		maxDelay:       cfg.MaxDelay,
		requestTimeout: cfg.RequestTimeout,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}
	if s.scheduler == nil {
		s.scheduler = NewTimerScheduler()
	}
	if s.rnd == nil {
		s.rnd = random.Default()
	}
	if s.minDelay <= 0 && s.maxDelay <= 0 {
		s.minDelay, s.maxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if s.logger == nil {
		s.logger = corelog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	return s
}

func notFound(format string, args ...interface{}) error {
	return coreerrors.Newf(coreerrors.CodeDestinationNotFound, format, args...)
}

// GetBotClient 返回上报了 botID 的第一个客户端
func (s *Service) GetBotClient(ctx context.Context, botID int64) (string, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return "", err
	}
	for _, cb := range all {
		for _, b := range cb.Bots {
			if b.UIN == botID {
				return cb.ClientID, nil
			}
		}
	}
	return "", notFound("no client hosts bot %d", botID)
}

// GetGroupBot 返回第一个在 groupID 中的机器人
func (s *Service) GetGroupBot(ctx context.Context, groupID int64) (int64, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return 0, err
	}
	for _, cb := range all {
		for _, b := range cb.Bots {
			for _, g := range b.Groups {
				if g.GroupID == groupID {
					return b.UIN, nil
				}
			}
		}
	}
	return 0, notFound("no bot in group %d", groupID)
}

// resolve botID 为 0 时按群查找
func (s *Service) resolve(ctx context.Context, groupID, botID int64) (int64, string, error) {
	if botID == 0 {
		id, err := s.GetGroupBot(ctx, groupID)
		if err != nil {
			return 0, "", err
		}
		botID = id
	}
	clientID, err := s.GetBotClient(ctx, botID)
	if err != nil {
		return 0, "", err
	}
	return botID, clientID, nil
}

// GetGroupInfo 向负责该群的客户端发起关联请求并返回回复
func (s *Service) GetGroupInfo(ctx context.Context, groupID, botID int64) (*hub.Message, error) {
	botID, clientID, err := s.resolve(ctx, groupID, botID)
	if err != nil {
		return nil, err
	}
	msg, err := hub.NewMessage(hub.TypeGetGroupInfo, payload{BotID: botID, GroupID: groupID, ClientID: clientID})
	if err != nil {
		return nil, err
	}
	return s.messenger.SendAndWait(ctx, clientID, msg, s.requestTimeout)
}

// SendMessage 单向发送群消息，返回是否找到目标并尝试了发送
func (s *Service) SendMessage(ctx context.Context, groupID int64, text string) (bool, error) {
	botID, clientID, err := s.resolve(ctx, groupID, 0)
	if err != nil {
		if coreerrors.IsCode(err, coreerrors.CodeDestinationNotFound) {
			s.logger.Warnf("bot: send to group %d skipped: %v", groupID, err)
			return false, nil
		}
		return false, err
	}
	msg, err := hub.NewMessage(hub.TypeSendMessage, payload{BotID: botID, GroupID: groupID, ClientID: clientID, Message: text})
	if err != nil {
		return false, err
	}
	if !s.messenger.Send(clientID, msg) {
		s.logger.Warnf("bot: send to group %d via %s/%d not delivered", groupID, clientID, botID)
	}
	return true, nil
}

// BroadcastToAllGroups 为每个群随机选择客户端和机器人，按随机延迟排期发送
func (s *Service) BroadcastToAllGroups(ctx context.Context, text string) ([]Planned, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	dm := BuildDestinations(all)

	groups := make([]int64, 0, len(dm))
	for gid := range dm {
		groups = append(groups, gid)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	plans := make([]Planned, 0, len(groups))
	for _, gid := range groups {
		clientID, ok := random.Pick(s.rnd, clientsOf(dm[gid]))
		if !ok {
			continue
		}
		botID, _ := random.Pick(s.rnd, botsOf(dm[gid], clientID))
		p := Planned{
			GroupID:  gid,
			ClientID: clientID,
			BotID:    botID,
			Delay:    random.Between(s.rnd, s.minDelay, s.maxDelay),
		}
		s.schedule(p, text)
		plans = append(plans, p)
	}

	s.metrics.Add(metrics.BroadcastScheduled, float64(len(plans)), nil)
	s.logger.Infof("bot: broadcast scheduled to %d groups", len(plans))
	return plans, nil
}

func (s *Service) schedule(p Planned, text string) {
	s.scheduler.Schedule(p.Delay, func() {
		msg, err := hub.NewMessage(hub.TypeSendMessage, payload{
			BotID: p.BotID, GroupID: p.GroupID, ClientID: p.ClientID, Message: text,
		})
		if err != nil {
			s.logger.Errorf("bot: broadcast to group %d: %v", p.GroupID, err)
			return
		}
		if !s.messenger.Send(p.ClientID, msg) {
			s.metrics.Inc(metrics.BroadcastDelivered, map[string]string{"result": "failed"})
			s.logger.Warnf("bot: broadcast to group %d via %s not delivered", p.GroupID, p.ClientID)
			return
		}
		s.metrics.Inc(metrics.BroadcastDelivered, map[string]string{"result": "ok"})
	})
}

// BotIDs 所有已上报机器人的 uin
func (s *Service) BotIDs(ctx context.Context) ([]int64, error) {
	return s.repo.BotIDs(ctx)
}

// IsNotFound 是否为目标不存在
func IsNotFound(err error) bool {
	return coreerrors.IsCode(err, coreerrors.CodeDestinationNotFound) || errors.Is(err, coreerrors.ErrClientNotFound)
}
