package server

import (
	"encoding/json"
	"net/http"

	"doodlesync/logging"
)

// HandleAdminConfig 提供大厅规则的读取与更新（热更新基本规则）
// GET /admin/config?lobby=1  返回当前配置
// POST /admin/config?lobby=1 以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	lobbyID := r.URL.Query().Get("lobby")
	if lobbyID == "" {
		lobbyID = defaultLobby
	}
	lobby := s.Lobbies.GetOrCreate(lobbyID)

	type patch struct {
		DrawSeconds      *int     `json:"drawSeconds,omitempty"`
		OverlaySeconds   *int     `json:"overlaySeconds,omitempty"`
		Rounds           *int     `json:"rounds,omitempty"`
		MinPlayers       *int     `json:"minPlayers,omitempty"`
		CloseDistance    *int     `json:"closeDistance,omitempty"`
		PublishPerSecond *float64 `json:"publishPerSecond,omitempty"`
		PublishBurst     *int     `json:"publishBurst,omitempty"`
		WordResendMs     *int     `json:"wordResendMs,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		cfg, err := lobby.Config(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPost:
		var body patch
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		cfg, err := lobby.UpdateConfig(r.Context(), func(c *LobbyConfig) {
			if body.DrawSeconds != nil && *body.DrawSeconds > 0 {
				c.DrawSeconds = *body.DrawSeconds
			}
			if body.OverlaySeconds != nil && *body.OverlaySeconds >= 0 {
				c.OverlaySeconds = *body.OverlaySeconds
			}
			if body.Rounds != nil && *body.Rounds > 0 {
				c.Rounds = *body.Rounds
			}
			if body.MinPlayers != nil && *body.MinPlayers > 0 {
				c.MinPlayers = *body.MinPlayers
			}
			if body.CloseDistance != nil && *body.CloseDistance >= 0 {
				c.CloseDistance = *body.CloseDistance
			}
			if body.PublishPerSecond != nil && *body.PublishPerSecond > 0 {
				c.PublishPerSecond = *body.PublishPerSecond
			}
			if body.PublishBurst != nil && *body.PublishBurst > 0 {
				c.PublishBurst = *body.PublishBurst
			}
			if body.WordResendMs != nil && *body.WordResendMs > 0 {
				c.WordResendMs = *body.WordResendMs
			}
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "config": cfg})
		logging.Log.Infow("config updated", "lobby", lobbyID, "drawSeconds", cfg.DrawSeconds, "rounds", cfg.Rounds,
			"overlaySeconds", cfg.OverlaySeconds, "minPlayers", cfg.MinPlayers, "publishPerSecond", cfg.PublishPerSecond)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定大厅的运行指标
// GET /metrics?lobby=1
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	lobbyID := r.URL.Query().Get("lobby")
	if lobbyID == "" {
		lobbyID = defaultLobby
	}
	lobby, err := s.Lobbies.Get(lobbyID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lobby":   lobbyID,
		"metrics": lobby.Metrics().Snapshot(),
	})
}
