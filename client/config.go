package client

import (
	"strings"
	"time"

	"doodlesync/draw"
	"doodlesync/round"
)

// Config 客户端参数；零值字段在 New 中取默认值
type Config struct {
	BaseURL   string // relay 的 http 地址，例如 http://127.0.0.1:8080
	Lobby     string
	Player    string
	Avatar    int
	SessionID string
	Resume    bool // 重新进入对局时通过 REST 恢复状态与画布

	CanvasWidth  int
	CanvasHeight int

	PacerInterval     time.Duration
	HeartbeatInterval time.Duration
	MaxGuessLength    int

	Round      round.Config
	Reconciler draw.ReconcilerConfig
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://127.0.0.1:8080",
		Lobby:             "1",
		CanvasWidth:       800,
		CanvasHeight:      600,
		PacerInterval:     draw.DefaultInterval,
		HeartbeatInterval: 10 * time.Second,
		MaxGuessLength:    30,
		Round:             round.DefaultConfig(),
		Reconciler:        draw.ReconcilerConfig{FrameInterval: draw.DefaultFrameInterval},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Lobby == "" {
		c.Lobby = def.Lobby
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		c.CanvasWidth, c.CanvasHeight = def.CanvasWidth, def.CanvasHeight
	}
	if c.PacerInterval <= 0 {
		c.PacerInterval = def.PacerInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.MaxGuessLength <= 0 {
		c.MaxGuessLength = def.MaxGuessLength
	}
	return c
}

// WSURL 由 BaseURL 推出 WebSocket 端点
func (c Config) WSURL() string {
	base := strings.TrimSuffix(c.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}
