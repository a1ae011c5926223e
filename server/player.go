package server

import (
	"doodlesync/protocol"
)

// PlayerID 表示玩家唯一标识（用户名）
type PlayerID string

// Sink 连接的发送端；ClientConn 是 WebSocket 实现
type Sink interface {
	Enqueue(b []byte)
	Close()
}

// Member 大厅内的玩家；断线后保留，便于对局中恢复
type Member struct {
	ID      PlayerID
	Session string
	Avatar  int

	Conn Sink // 当前连接，断线为 nil
	subs map[string]bool
}

func newMember(id PlayerID, session string, avatar int, conn Sink) *Member {
	return &Member{ID: id, Session: session, Avatar: avatar, Conn: conn, subs: make(map[string]bool)}
}

// Online 是否有活动连接
func (m *Member) Online() bool { return m.Conn != nil }

func (m *Member) toPlayer() protocol.Player {
	return protocol.Player{Username: string(m.ID), Avatar: m.Avatar}
}
