package server

import (
	"sort"
	"sync"
)

// Manager 管理多个大厅的生命周期
type Manager struct {
	mu      sync.RWMutex
	lobbies map[string]*Lobby
	cfg     LobbyConfig
	words   func() WordSource
}

// NewManager words 为 nil 时每个大厅使用随机词库
func NewManager(cfg LobbyConfig, words func() WordSource) *Manager {
	if words == nil {
		words = func() WordSource { return NewWordBank(nil, 0) }
	}
	return &Manager{lobbies: make(map[string]*Lobby), cfg: cfg, words: words}
}

// GetOrCreate 获取或创建大厅，并确保开始 Tick
func (m *Manager) GetOrCreate(id string) *Lobby {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[id]
	if !ok {
		l = NewLobby(id, m.cfg, m.words())
		m.lobbies[id] = l
		l.StartTicker()
	}
	return l
}

// Get 查找已存在的大厅
func (m *Manager) Get(id string) (*Lobby, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lobbies[id]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	return l, nil
}

func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.lobbies))
	for id := range m.lobbies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown 停止所有大厅
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lobbies {
		l.Stop()
	}
}
