package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session 由 /api/session 创建，通过 X-Session-ID 识别玩家
type Session struct {
	ID       string    `json:"sessionId"`
	Name     string    `json:"userName"`
	Avatar   int       `json:"avatar"`
	LastSeen time.Time `json:"-"`
}

// Sessions 会话表；心跳刷新 LastSeen，超时由 Sweep 清理
type Sessions struct {
	mu   sync.RWMutex
	byID map[string]*Session
	now  func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*Session), now: time.Now}
}

func (s *Sessions) Create(name string, avatar int) Session {
	sess := &Session{ID: uuid.NewString(), Name: name, Avatar: avatar, LastSeen: s.now()}
	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.mu.Unlock()
	return *sess
}

func (s *Sessions) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Touch 心跳；未知会话返回 false
func (s *Sessions) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if ok {
		sess.LastSeen = s.now()
	}
	return ok
}

// Sweep 删除超过 ttl 没有心跳的会话，返回删除数量
func (s *Sessions) Sweep(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.byID {
		if sess.LastSeen.Before(cutoff) {
			delete(s.byID, id)
			n++
		}
	}
	return n
}
