package hub

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	coreerrors "crystelf-core/internal/core/errors"

	"github.com/gorilla/websocket"
)

// Transport 底层消息通道，*websocket.Conn 满足此接口
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

var _ Transport = (*websocket.Conn)(nil)

// Conn 一条客户端连接
type Conn struct {
	id           string
	remoteAddr   string
	transport    Transport
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu            sync.RWMutex
	clientID      string
	authenticated bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id string, t Transport, writeTimeout time.Duration) *Conn {
	addr := ""
	if ra := t.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Conn{
		id:           id,
		remoteAddr:   addr,
		transport:    t,
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

// ID 连接 ID
func (c *Conn) ID() string { return c.id }

// RemoteAddr 对端地址
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// ClientID 认证后绑定的客户端 ID，未认证时为空
func (c *Conn) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

// Authenticated 是否已认证
func (c *Conn) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// authenticate 只在首次认证时生效
func (c *Conn) authenticate(clientID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authenticated {
		return false
	}
	c.clientID = clientID
	c.authenticated = true
	return true
}

// IsOpen 连接未关闭
func (c *Conn) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Done 连接关闭通知
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Send 编码并写出一条文本帧
func (c *Conn) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeInvalidMessage, "encode outbound message")
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Conn) write(messageType int, data []byte) error {
	if !c.IsOpen() {
		return coreerrors.ErrClientOffline
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.transport.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.transport.WriteMessage(messageType, data); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeClientOffline, "write to %s", c.remoteAddr)
	}
	return nil
}

// CloseWithCode 发送关闭帧后关闭底层通道，重复调用无效
func (c *Conn) CloseWithCode(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.transport.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		err = c.transport.Close()
	})
	return err
}

// Close 正常关闭
func (c *Conn) Close() error {
	return c.CloseWithCode(websocket.CloseNormalClosure, "")
}
