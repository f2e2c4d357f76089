// Package handlers 已认证连接上的消息处理器
package handlers

import (
	"context"
	"encoding/json"

	"crystelf-core/internal/bot"
	coreerrors "crystelf-core/internal/core/errors"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/hub"
)

// Config 处理器依赖
type Config struct {
	Bots   *bot.Repository
	Logger corelog.Logger
}

// Default 启动时注册的完整处理表
func Default(cfg *Config) []hub.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = corelog.Default()
	}
	return []hub.Handler{
		Ping(),
		Pong(logger),
		Test(),
		ReportBots(cfg.Bots, logger),
		Unknown(logger),
	}
}

// Ping 回复 pong
func Ping() hub.Handler {
	return hub.HandlerFunc{
		MsgType: hub.TypePing,
		Fn: func(_ context.Context, c *hub.Conn, _ *hub.Message) error {
			return c.Send(&hub.Message{Type: hub.TypePong})
		},
	}
}

// Pong 心跳回应，仅记录
func Pong(logger corelog.Logger) hub.Handler {
	return hub.HandlerFunc{
		MsgType: hub.TypePong,
		Fn: func(_ context.Context, c *hub.Conn, _ *hub.Message) error {
			logger.Debugf("hub: pong from %s", c.ClientID())
			return nil
		},
	}
}

type testStatus struct {
	Status string `json:"status"`
}

// Test 连通性探测，回复固定状态
func Test() hub.Handler {
	return hub.HandlerFunc{
		MsgType: hub.TypeTest,
		Fn: func(_ context.Context, c *hub.Conn, _ *hub.Message) error {
			reply, err := hub.NewMessage(hub.TypeTest, testStatus{Status: "ok"})
			if err != nil {
				return err
			}
			return c.Send(reply)
		},
	}
}

type reporter struct {
	Client string `json:"client"`
}

// ReportBots 保存客户端上报的机器人列表，整体覆盖旧记录，不回复
//
// data 为数组，首元素 {client} 标识上报方，其余为机器人记录。
// client 缺省时使用连接认证时的 clientId。
func ReportBots(repo *bot.Repository, logger corelog.Logger) hub.Handler {
	return hub.HandlerFunc{
		MsgType: hub.TypeReportBots,
		Fn: func(ctx context.Context, c *hub.Conn, msg *hub.Message) error {
			var items []json.RawMessage
			if err := msg.DecodeData(&items); err != nil {
				return err
			}
			if len(items) == 0 {
				return coreerrors.New(coreerrors.CodeInvalidMessage, "reportBots data is empty")
			}

			var who reporter
			if err := json.Unmarshal(items[0], &who); err != nil {
				return coreerrors.Wrap(err, coreerrors.CodeInvalidMessage, "decode reporter")
			}
			clientID := who.Client
			if clientID == "" {
				clientID = c.ClientID()
			}

			records := make([]bot.Record, 0, len(items)-1)
			for i, raw := range items[1:] {
				var r bot.Record
				if err := json.Unmarshal(raw, &r); err != nil {
					return coreerrors.Wrapf(err, coreerrors.CodeInvalidMessage, "decode bot record %d", i)
				}
				records = append(records, r)
			}

			if err := repo.Save(ctx, clientID, records); err != nil {
				return err
			}
			logger.Infof("hub: %s reported %d bots", clientID, len(records))
			return nil
		},
	}
}

// Unknown 未注册类型的兜底处理，回复错误并带上类型名
func Unknown(logger corelog.Logger) hub.Handler {
	return hub.HandlerFunc{
		MsgType: hub.TypeUnknown,
		Fn: func(_ context.Context, c *hub.Conn, msg *hub.Message) error {
			logger.Warnf("hub: unknown message type %q from %s", msg.Type, c.ClientID())
			return c.Send(hub.ErrorMessage(hub.UnknownTypeText(msg.Type)))
		},
	}
}
