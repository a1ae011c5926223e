package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"doodlesync/logging"
	"doodlesync/protocol"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
		logging.Log.Debugw("send queue full, frame dropped", "remote", c.ws.RemoteAddr().String())
	}
}

// Close 结束写协程并关闭底层连接；可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 5 * time.Second
)

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer c.ws.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端帧，转换为 Input 注入大厅
func (c *ClientConn) readPump(lobby *Lobby, playerID PlayerID, limiter *rate.Limiter) {
	defer c.ws.Close()
	// 读泵退出时，通知大厅在 Tick 线程中移除该连接
	defer lobby.RequestLeave(playerID, c)
	c.ws.SetReadLimit(1 << 20) // 1MB
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	var seq int64
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		seq++
		var f protocol.Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			lobby.metrics.IncMalformed()
			continue
		}
		in := Input{PlayerID: playerID, Conn: c, Topic: f.Topic, Body: f.Body, Seq: seq, At: time.Now()}
		switch f.Op {
		case protocol.OpSubscribe:
			in.Action = ActionSubscribe
		case protocol.OpUnsubscribe:
			in.Action = ActionUnsubscribe
		case protocol.OpPublish:
			action, lobbyID, ok := protocol.SplitDestination(f.Topic)
			if !ok || lobbyID != lobby.ID {
				lobby.metrics.IncMalformed()
				continue
			}
			if !limiter.Allow() {
				lobby.metrics.IncRateLimited()
				continue
			}
			in.Action = Action(action)
		default:
			lobby.metrics.IncMalformed()
			continue
		}
		lobby.OnInput(in)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 开发用 relay：允许所有来源
		return true
	},
}

// HandleWS WebSocket 接入：/ws?lobby=1&player=alice（或携带 X-Session-ID）
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	lobbyID := r.URL.Query().Get("lobby")
	if lobbyID == "" {
		lobbyID = defaultLobby
	}
	player, sessionID, avatar := r.URL.Query().Get("player"), r.Header.Get(SessionHeader), 0
	if sess, ok := s.Sessions.Get(sessionID); ok {
		player, avatar = sess.Name, sess.Avatar
	}
	if player == "" {
		http.Error(w, "missing player query", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Warnw("upgrade error", "err", err)
		return
	}

	lobby := s.Lobbies.GetOrCreate(lobbyID)
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	cfg, err := lobby.Config(ctx)
	cancel()
	if err != nil {
		cfg = DefaultLobbyConfig()
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.PublishPerSecond), cfg.PublishBurst)

	client := NewClientConn(ws)
	lobby.Join(newMember(PlayerID(player), sessionID, avatar, client))

	go client.writePump()
	go client.readPump(lobby, PlayerID(player), limiter)
}
