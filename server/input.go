package server

import (
	"encoding/json"
	"time"
)

// Action 入站动作（由 "/app/<action>/<lobby>" 解析而来，另含订阅操作）
type Action string

const (
	ActionSubscribe   Action = "sub"
	ActionUnsubscribe Action = "unsub"
	ActionDrawing     Action = "drawing"
	ActionGuess       Action = "game-state.guess"
	ActionStart       Action = "game-state.start"
	ActionDrawerAck   Action = "game-state.drawer-ack"
)

// Input 客户端输入（意图），由大厅在 Tick 中解释
type Input struct {
	PlayerID PlayerID
	Conn     Sink // 发出输入的连接；旧连接的输入会被忽略
	Action   Action
	Topic    string
	Body     json.RawMessage
	Seq      int64 // 连接内的到达序号，仅用于日志排查
	At       time.Time
}

type joinReq struct {
	member *Member
}

type leaveReq struct {
	id   PlayerID
	conn Sink
}
