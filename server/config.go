package server

import "time"

// LobbyConfig 大厅规则；可通过 /admin/config 热更新
type LobbyConfig struct {
	DrawSeconds      int     `json:"drawSeconds"`      // 纯绘画时间
	OverlaySeconds   int     `json:"overlaySeconds"`   // 客户端遮罩时长
	Rounds           int     `json:"rounds"`           // 每人画几次
	MinPlayers       int     `json:"minPlayers"`       // 开始游戏所需在线人数
	CloseDistance    int     `json:"closeDistance"`    // 编辑距离不超过此值提示“很接近”
	PublishPerSecond float64 `json:"publishPerSecond"` // 每连接发布频率上限
	PublishBurst     int     `json:"publishBurst"`
	WordResendMs     int     `json:"wordResendMs"` // 画手未回执时重发词的间隔
}

func DefaultLobbyConfig() LobbyConfig {
	return LobbyConfig{
		DrawSeconds:      60,
		OverlaySeconds:   5,
		Rounds:           3,
		MinPlayers:       2,
		CloseDistance:    2,
		PublishPerSecond: 120,
		PublishBurst:     240,
		WordResendMs:     2000,
	}
}

// roundTime 发给客户端的回合时间（秒），包含遮罩
func (c LobbyConfig) roundTime(firstTurn bool) int {
	if firstTurn {
		return c.DrawSeconds + c.OverlaySeconds
	}
	return c.DrawSeconds + 2*c.OverlaySeconds
}

func (c LobbyConfig) wordResend() time.Duration {
	return time.Duration(c.WordResendMs) * time.Millisecond
}
