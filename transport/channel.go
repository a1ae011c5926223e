// Package transport 提供可靠的 pub/sub 通道；核心逻辑只依赖 Channel 接口
package transport

import "errors"

var (
	ErrClosed    = errors.New("transport: channel closed")
	ErrQueueFull = errors.New("transport: send queue full")
)

// Channel 按 topic 订阅与发布 JSON 消息
type Channel interface {
	// Subscribe 注册回调；回调在通道的读协程上执行
	Subscribe(topic string, fn func(body []byte)) error
	Publish(topic string, body any) error
	Close() error
}

// SessionHeader 会话标识请求头（WebSocket 握手与 REST 共用）
const SessionHeader = "X-Session-ID"
