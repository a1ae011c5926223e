package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"doodlesync/logging"
	"doodlesync/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	readLimit  = 1 << 20
)

// Options 连接参数
type Options struct {
	Lobby     string
	Player    string
	SessionID string
	QueueSize int
	// OnClose 读协程退出时调用（对端关闭或网络错误）；主动 Close 时 err 为 nil
	OnClose func(err error)
}

// WS 基于 gorilla/websocket 的 Channel 实现
type WS struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu       sync.RWMutex
	handlers map[string][]func([]byte)

	closeOnce sync.Once
	onClose   func(error)
}

// Dial 连接到 relay 的 /ws 端点
func Dial(ctx context.Context, rawURL string, opt Options) (*WS, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse ws url: %w", err)
	}
	q := u.Query()
	if opt.Lobby != "" {
		q.Set("lobby", opt.Lobby)
	}
	if opt.Player != "" {
		q.Set("player", opt.Player)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if opt.SessionID != "" {
		header.Set(SessionHeader, opt.SessionID)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return newWS(conn, opt), nil
}

func newWS(conn *websocket.Conn, opt Options) *WS {
	size := opt.QueueSize
	if size <= 0 {
		size = 256
	}
	c := &WS{
		conn:     conn,
		send:     make(chan []byte, size),
		done:     make(chan struct{}),
		handlers: make(map[string][]func([]byte)),
		onClose:  opt.OnClose,
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *WS) Subscribe(topic string, fn func([]byte)) error {
	c.mu.Lock()
	first := len(c.handlers[topic]) == 0
	c.handlers[topic] = append(c.handlers[topic], fn)
	c.mu.Unlock()
	if !first {
		return nil
	}
	return c.enqueue(protocol.Frame{Op: protocol.OpSubscribe, Topic: topic})
}

func (c *WS) Publish(topic string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return c.enqueue(protocol.Frame{Op: protocol.OpPublish, Topic: topic, Body: raw})
}

// enqueue 非阻塞入队，满则丢弃
func (c *WS) enqueue(f protocol.Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// Close 主动关闭；可重复调用
func (c *WS) Close() error {
	c.shutdown(nil)
	return nil
}

// Done 连接结束后关闭
func (c *WS) Done() <-chan struct{} { return c.done }

func (c *WS) shutdown(err error) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(err)
		}
	})
}

func (c *WS) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.shutdown(err)
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}

func (c *WS) readPump() {
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				c.shutdown(nil)
			default:
				c.shutdown(err)
			}
			return
		}
		var f protocol.Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			logging.Log.Debugw("bad frame", "err", err)
			continue
		}
		if f.Op != protocol.OpMessage {
			continue
		}
		c.mu.RLock()
		hs := c.handlers[f.Topic]
		c.mu.RUnlock()
		for _, fn := range hs {
			fn(f.Body)
		}
	}
}
