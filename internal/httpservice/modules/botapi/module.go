// Package botapi 受令牌保护的机器人 HTTP 接口
package botapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"crystelf-core/internal/bot"
	coreerrors "crystelf-core/internal/core/errors"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/httpservice"
	"crystelf-core/internal/hub"

	"github.com/gorilla/mux"
)

const maxBody = 1 << 20

// BotService 接口依赖的机器人服务
type BotService interface {
	BotIDs(ctx context.Context) ([]int64, error)
	GetGroupInfo(ctx context.Context, groupID, botID int64) (*hub.Message, error)
	SendMessage(ctx context.Context, groupID int64, text string) (bool, error)
	BroadcastToAllGroups(ctx context.Context, text string) ([]bot.Planned, error)
}

var _ BotService = (*bot.Service)(nil)

// Module /api/bot 下的路由
type Module struct {
	token  string
	bots   BotService
	logger corelog.Logger
}

// NewModule 创建模块，token 为空时所有请求都被拒绝
func NewModule(token string, bots BotService) *Module {
	return &Module{token: token, bots: bots, logger: corelog.Default()}
}

func (m *Module) Name() string { return "BotAPI" }

func (m *Module) SetDependencies(deps *httpservice.ModuleDependencies) {
	if deps != nil && deps.Logger != nil {
		m.logger = deps.Logger
	}
}

func (m *Module) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/bot").Subrouter()
	api.Use(httpservice.TokenAuth(m.token, m.logger))
	api.HandleFunc("/getBotId", m.handleGetBotID).Methods(http.MethodPost)
	api.HandleFunc("/getGroupInfo", m.handleGetGroupInfo).Methods(http.MethodPost)
	api.HandleFunc("/sendMessage", m.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/broadcast", m.handleBroadcast).Methods(http.MethodPost)
}

func (m *Module) Start() error { return nil }
func (m *Module) Stop() error  { return nil }

type groupRequest struct {
	GroupID int64 `json:"groupId"`
	BotID   int64 `json:"botId"`
}

type messageRequest struct {
	GroupID int64  `json:"groupId"`
	Message string `json:"message"`
}

type sendResult struct {
	Sent bool `json:"sent"`
}

type broadcastResult struct {
	Scheduled int `json:"scheduled"`
}

func decode(r *http.Request, out interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (m *Module) handleGetBotID(w http.ResponseWriter, r *http.Request) {
	ids, err := m.bots.BotIDs(r.Context())
	if err != nil {
		m.fail(w, "getBotId", err)
		return
	}
	httpservice.RespondSuccess(w, ids)
}

func (m *Module) handleGetGroupInfo(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(r, &req); err != nil || req.GroupID <= 0 {
		httpservice.RespondError(w, http.StatusBadRequest, "groupId is required")
		return
	}
	reply, err := m.bots.GetGroupInfo(r.Context(), req.GroupID, req.BotID)
	if err != nil {
		m.fail(w, "getGroupInfo", err)
		return
	}
	httpservice.RespondSuccess(w, reply.Data)
}

func (m *Module) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decode(r, &req); err != nil || req.GroupID <= 0 || req.Message == "" {
		httpservice.RespondError(w, http.StatusBadRequest, "groupId and message are required")
		return
	}
	ok, err := m.bots.SendMessage(r.Context(), req.GroupID, req.Message)
	if err != nil {
		m.fail(w, "sendMessage", err)
		return
	}
	if !ok {
		httpservice.RespondMessage(w, sendResult{Sent: false}, "no bot serves this group")
		return
	}
	httpservice.RespondSuccess(w, sendResult{Sent: true})
}

func (m *Module) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decode(r, &req); err != nil || req.Message == "" {
		httpservice.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	plans, err := m.bots.BroadcastToAllGroups(context.WithoutCancel(r.Context()), req.Message)
	if err != nil {
		m.fail(w, "broadcast", err)
		return
	}
	httpservice.RespondMessage(w, broadcastResult{Scheduled: len(plans)}, "broadcast scheduled")
}

// fail 按错误码映射 HTTP 状态
func (m *Module) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch coreerrors.GetCode(err) {
	case coreerrors.CodeDestinationNotFound, coreerrors.CodeClientNotFound:
		status = http.StatusNotFound
	case coreerrors.CodeClientOffline:
		status = http.StatusBadGateway
	case coreerrors.CodeTimeout:
		status = http.StatusGatewayTimeout
	case coreerrors.CodeInvalidParam:
		status = http.StatusBadRequest
	}
	m.logger.WithError(err).Warnf("botapi: %s failed", op)
	httpservice.RespondError(w, status, err.Error())
}
