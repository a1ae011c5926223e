package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"doodlesync/logging"
)

// SessionHeader 心跳与 REST 查询携带的会话头
const SessionHeader = "X-Session-ID"

const (
	defaultLobby = "1"
	restTimeout  = 5 * time.Second
)

// Server relay 的 HTTP 入口：WebSocket、会话与断线恢复查询、管理接口
type Server struct {
	Lobbies  *Manager
	Sessions *Sessions
}

func NewServer(lobbies *Manager, sessions *Sessions) *Server {
	if sessions == nil {
		sessions = NewSessions()
	}
	return &Server{Lobbies: lobbies, Sessions: sessions}
}

// Router 组装路由；/ws 为长连接，不挂超时中间件
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(logging.Log.Desugar()),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.HandleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "lobbies": s.Lobbies.IDs()})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(restTimeout))

		r.Route("/api", func(r chi.Router) {
			r.Get("/session", s.handleCreateSession)
			r.Post("/session/heartbeat", s.handleHeartbeat)
			r.Route("/game", func(r chi.Router) {
				r.Get("/state", s.handleGameState)
				r.Get("/drawingHistory", s.handleDrawingHistory)
				r.Get("/drawer", s.handleDrawer)
			})
		})
		r.Get("/metrics", s.HandleMetrics)
		r.HandleFunc("/admin/config", s.HandleAdminConfig)
	})
	return r
}

// RunJanitor 定期清理不再心跳的会话，直到 ctx 结束
func (s *Server) RunJanitor(ctx context.Context, every, ttl time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sessions.Sweep(ttl); n > 0 {
				logging.Log.Infow("sessions expired", "count", n)
			}
		}
	}
}

// GET /api/session?userName=alice&avatar=3
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("userName")
	if name == "" {
		http.Error(w, "missing userName", http.StatusBadRequest)
		return
	}
	avatar := 0
	if v := r.URL.Query().Get("avatar"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid avatar", http.StatusBadRequest)
			return
		}
		avatar = n
	}
	sess := s.Sessions.Create(name, avatar)
	logging.Log.Infow("session created", "player", name, "session", sess.ID)
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sess.ID})
}

// POST /api/session/heartbeat
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if !s.Sessions.Touch(r.Header.Get(SessionHeader)) {
		http.Error(w, "unknown session", http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/game/state?lobbyId=1
func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	lobby, ok := s.lookupLobby(w, r)
	if !ok {
		return
	}
	gs, err := lobby.CurrentState(r.Context(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// GET /api/game/drawingHistory?lobbyId=1
func (s *Server) handleDrawingHistory(w http.ResponseWriter, r *http.Request) {
	lobby, ok := s.lookupLobby(w, r)
	if !ok {
		return
	}
	events, err := lobby.History(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GET /api/game/drawer?lobbyId=1，需要 X-Session-ID
func (s *Server) handleDrawer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Sessions.Get(r.Header.Get(SessionHeader))
	if !ok {
		http.Error(w, "unknown session", http.StatusUnauthorized)
		return
	}
	lobby, ok := s.lookupLobby(w, r)
	if !ok {
		return
	}
	info, err := lobby.DrawerInfo(r.Context(), PlayerID(sess.Name))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) lookupLobby(w http.ResponseWriter, r *http.Request) (*Lobby, bool) {
	id := r.URL.Query().Get("lobbyId")
	if id == "" {
		id = defaultLobby
	}
	lobby, err := s.Lobbies.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return lobby, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLobbyNotFound), errors.Is(err, ErrNoGame):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrLobbyStopped):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
