package hub

import (
	"crypto/subtle"
	"sync/atomic"
	"time"

	"crystelf-core/internal/core/dispose"
	corelog "crystelf-core/internal/core/log"
	"crystelf-core/internal/core/metrics"
	"crystelf-core/internal/core/safe"

	"github.com/gorilla/websocket"
)

// State 会话状态
type State int32

const (
	StateConnecting State = iota
	StateUnauthenticated
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "invalid"
}

// Session 单条连接的认证状态机
//
// 入站消息由同一个 goroutine 顺序处理；心跳在独立 goroutine 中运行，
// 所有退出路径都经过 teardown。
type Session struct {
	dispose.Dispose

	gw     *Gateway
	conn   *Conn
	state  atomic.Int32
	logger corelog.Logger
}

// Conn 会话连接
func (s *Session) Conn() *Conn { return s.conn }

// State 当前状态
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

func (s *Session) run() {
	s.setState(StateUnauthenticated)
	safe.Go("heartbeat", func() { s.heartbeat(s.gw.heartbeatInterval) })
	s.readLoop()
}

func (s *Session) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ping := &Message{Type: TypePing}
	for {
		select {
		case <-s.Done():
			return
		case <-ticker.C:
			if err := s.conn.Send(ping); err != nil {
				s.logger.Debugf("hub: heartbeat failed: %v", err)
			}
		}
	}
}

func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.transport.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && s.conn.IsOpen() {
				s.logger.Warnf("hub: read failed: %v", err)
			} else {
				s.logger.Debugf("hub: connection closed: %v", err)
			}
			return
		}
		if !s.handleFrame(data) {
			return
		}
	}
}

// handleFrame 返回 false 表示会话应结束
func (s *Session) handleFrame(data []byte) bool {
	msg, err := ParseMessage(data)
	if err != nil {
		s.logger.Warnf("hub: invalid message: %v", err)
		s.reply(ErrorMessage(TextInvalidFormat))
		return true
	}

	switch s.State() {
	case StateUnauthenticated:
		return s.handleAuth(msg)
	case StateAuthenticated:
		s.gw.dispatcher.Dispatch(s.Ctx(), s.conn, msg)
		return true
	default:
		return false
	}
}

func (s *Session) handleAuth(msg *Message) bool {
	if msg.Type != TypeAuth || msg.Secret == "" || msg.ClientID == "" {
		s.logger.Warnf("hub: %q received before authentication", msg.Type)
		s.reply(ErrorMessage(TextInvalidFormat))
		return true
	}

	if subtle.ConstantTimeCompare([]byte(msg.Secret), []byte(s.gw.secret)) != 1 {
		s.gw.metrics.Inc(metrics.AuthTotal, map[string]string{"result": "failed"})
		s.logger.WithField("clientId", msg.ClientID).Warn("hub: authentication failed")
		s.reply(AuthResult(false))
		_ = s.conn.CloseWithCode(CloseAuthFailed, TextAuthFailed)
		return false
	}

	s.conn.authenticate(msg.ClientID)
	s.setState(StateAuthenticated)
	s.gw.registry.Add(msg.ClientID, s.conn)
	s.gw.metrics.Inc(metrics.AuthTotal, map[string]string{"result": "ok"})
	s.logger.WithField("clientId", msg.ClientID).Info("hub: client authenticated")
	s.reply(AuthResult(true))
	return true
}

func (s *Session) reply(msg *Message) {
	if err := s.conn.Send(msg); err != nil {
		s.logger.Debugf("hub: reply %s not delivered: %v", msg.Type, err)
	}
}

func (s *Session) teardown() error {
	s.setState(StateClosed)
	if id := s.conn.ClientID(); id != "" {
		if s.gw.registry.RemoveConn(id, s.conn) {
			s.logger.WithField("clientId", id).Info("hub: client disconnected")
		}
	}
	s.gw.untrack(s)
	return s.conn.Close()
}
