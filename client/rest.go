package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"doodlesync/protocol"
	"doodlesync/transport"
)

var ErrUnauthorized = errors.New("session rejected")

// StatusError 非 2xx 响应
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// REST relay 的 REST 接口：会话、心跳与断线恢复查询
type REST struct {
	base string
	hc   *http.Client

	mu      sync.RWMutex
	session string
}

func NewREST(baseURL string, hc *http.Client) *REST {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &REST{base: strings.TrimSuffix(baseURL, "/"), hc: hc}
}

func (r *REST) Session() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

func (r *REST) SetSession(id string) {
	r.mu.Lock()
	r.session = id
	r.mu.Unlock()
}

// CreateSession 创建会话并记住 sessionId
func (r *REST) CreateSession(ctx context.Context, name string, avatar int) (string, error) {
	q := url.Values{"userName": {name}, "avatar": {strconv.Itoa(avatar)}}
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := r.do(ctx, http.MethodGet, "/api/session", q, &resp); err != nil {
		return "", err
	}
	r.SetSession(resp.SessionID)
	return resp.SessionID, nil
}

// Heartbeat 会话保活；会话被拒绝时清除本地 sessionId
func (r *REST) Heartbeat(ctx context.Context) error {
	return r.do(ctx, http.MethodPost, "/api/session/heartbeat", nil, nil)
}

func (r *REST) GameState(ctx context.Context, lobby string) (protocol.GameState, error) {
	var gs protocol.GameState
	err := r.do(ctx, http.MethodGet, "/api/game/state", url.Values{"lobbyId": {lobby}}, &gs)
	return gs, err
}

func (r *REST) DrawingHistory(ctx context.Context, lobby string) ([]protocol.DrawingEvent, error) {
	var events []protocol.DrawingEvent
	err := r.do(ctx, http.MethodGet, "/api/game/drawingHistory", url.Values{"lobbyId": {lobby}}, &events)
	return events, err
}

func (r *REST) DrawerInfo(ctx context.Context, lobby string) (protocol.DrawerInfo, error) {
	var info protocol.DrawerInfo
	err := r.do(ctx, http.MethodGet, "/api/game/drawer", url.Values{"lobbyId": {lobby}}, &info)
	return info, err
}

func (r *REST) do(ctx context.Context, method, path string, q url.Values, out any) error {
	u := r.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	if s := r.Session(); s != "" {
		req.Header.Set(transport.SessionHeader, s)
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		r.SetSession("")
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %w", method, path, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
