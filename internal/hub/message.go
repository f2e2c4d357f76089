// Package hub 机器人客户端 WebSocket 接入：会话认证、消息分发、请求关联与广播
package hub

import (
	"encoding/json"
	"fmt"
)

// 消息类型
const (
	TypeAuth         = "auth"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeTest         = "test"
	TypeReportBots   = "reportBots"
	TypeGetGroupInfo = "getGroupInfo"
	TypeSendMessage  = "sendMessage"
	TypeError        = "error"
	TypeUnknown      = "unknown"
)

// 关闭码
const (
	CloseAuthFailed = 4001
)

// 固定回复文本
const (
	TextInvalidFormat = "Invalid message format"
	TextAuthFailed    = "Authentication failed"
	TextHandlerError  = "error message"
)

// Message 线上消息信封，所有字段都可能缺省
type Message struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Secret    string          `json:"secret,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Success   *bool           `json:"success,omitempty"`
}

// NewMessage 构造消息，data 为 nil 时不带 data 字段
func NewMessage(msgType string, data any) (*Message, error) {
	m := &Message{Type: msgType}
	if data == nil {
		return m, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	m.Data = raw
	return m, nil
}

// ErrorMessage error 类型回复
func ErrorMessage(text string) *Message {
	return &Message{Type: TypeError, Message: text}
}

// AuthResult auth 回复
func AuthResult(ok bool) *Message {
	return &Message{Type: TypeAuth, Success: &ok}
}

// UnknownTypeText 未知类型回复文本
func UnknownTypeText(msgType string) string {
	return "Unknown message type: " + msgType
}

// DecodeData 将 data 字段解码到 out
func (m *Message) DecodeData(out any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("message %q has no data", m.Type)
	}
	return json.Unmarshal(m.Data, out)
}

// clone 浅拷贝，Data 共享底层数组
func (m *Message) clone() *Message {
	c := *m
	return &c
}

// ParseMessage 解析入站帧，缺少 type 视为格式错误
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &m, nil
}
