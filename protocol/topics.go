package protocol

import (
	"encoding/json"
	"strings"
)

// 私有队列（按连接投递）
const (
	QueueWord           = "/user/queue/word"
	QueueDrawingHistory = "/user/queue/drawing-history"
)

func lobbyTopic(lobbyID, suffix string) string {
	return "/topic/lobby/" + lobbyID + "/" + suffix
}

// DrawingTopic 绘图事件广播 topic
func DrawingTopic(lobbyID string) string { return lobbyTopic(lobbyID, "drawing") }

// GameStateTopic 游戏状态广播 topic
func GameStateTopic(lobbyID string) string { return lobbyTopic(lobbyID, "game-state") }

// GuessTopic 猜词结果广播 topic
func GuessTopic(lobbyID string) string { return lobbyTopic(lobbyID, "guess") }

// 客户端发往服务端的目的地
func DrawingDestination(lobbyID string) string { return "/app/drawing/" + lobbyID }
func GuessDestination(lobbyID string) string { return "/app/game-state.guess/" + lobbyID }
func StartDestination(lobbyID string) string { return "/app/game-state.start/" + lobbyID }
func DrawerAckDestination(lobbyID string) string { return "/app/game-state.drawer-ack/" + lobbyID }

// SplitDestination 拆出 "/app/<action>/<lobby>" 中的 action 与 lobby
func SplitDestination(dest string) (action, lobbyID string, ok bool) {
	rest, found := strings.CutPrefix(dest, "/app/")
	if !found {
		return "", "", false
	}
	action, lobbyID, ok = strings.Cut(rest, "/")
	if !ok || action == "" || lobbyID == "" {
		return "", "", false
	}
	return action, lobbyID, true
}

// Op WebSocket 帧操作
type Op string

const (
	OpSubscribe   Op = "sub"
	OpUnsubscribe Op = "unsub"
	OpPublish     Op = "pub"
	OpMessage     Op = "msg"
)

// Frame pub/sub 通道上的一帧（JSON 文本消息）
type Frame struct {
	Op    Op              `json:"op"`
	Topic string          `json:"topic"`
	Body  json.RawMessage `json:"body,omitempty"`
}
