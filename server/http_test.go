package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doodlesync/protocol"
	"doodlesync/transport"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	mgr := NewManager(DefaultLobbyConfig(), func() WordSource { return fixedWords("apple") })
	s := NewServer(mgr, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		mgr.Shutdown()
	})
	return s, srv
}

func doRequest(t *testing.T, method, url, session string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSessionEndpoints(t *testing.T) {
	s, srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/session?userName=alice&avatar=3", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := decodeBody[map[string]string](t, resp)["sessionId"]
	require.NotEmpty(t, id)

	sess, ok := s.Sessions.Get(id)
	require.True(t, ok)
	assert.Equal(t, "alice", sess.Name)
	assert.Equal(t, 3, sess.Avatar)

	assert.Equal(t, http.StatusBadRequest, doRequest(t, http.MethodGet, srv.URL+"/api/session", "", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, http.MethodGet, srv.URL+"/api/session?userName=bob&avatar=x", "", "").StatusCode)

	assert.Equal(t, http.StatusNoContent, doRequest(t, http.MethodPost, srv.URL+"/api/session/heartbeat", id, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, http.MethodPost, srv.URL+"/api/session/heartbeat", "nope", "").StatusCode)
}

func TestGameQueriesWithoutGame(t *testing.T) {
	s, srv := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodGet, srv.URL+"/api/game/state?lobbyId=9", "", "").StatusCode)

	s.Lobbies.GetOrCreate("9")
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodGet, srv.URL+"/api/game/state?lobbyId=9", "", "").StatusCode)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/game/drawingHistory?lobbyId=9", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]protocol.DrawingEvent](t, resp))

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, http.MethodGet, srv.URL+"/api/game/drawer?lobbyId=9", "", "").StatusCode)
	sess := s.Sessions.Create("alice", 0)
	resp = doRequest(t, http.MethodGet, srv.URL+"/api/game/drawer?lobbyId=9", sess.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, protocol.DrawerInfo{}, decodeBody[protocol.DrawerInfo](t, resp))
}

func TestAdminConfigAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/admin/config?lobby=2", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, DefaultLobbyConfig(), decodeBody[LobbyConfig](t, resp))

	resp = doRequest(t, http.MethodPost, srv.URL+"/admin/config?lobby=2", "", `{"drawSeconds":30,"rounds":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[struct {
		OK     bool        `json:"ok"`
		Config LobbyConfig `json:"config"`
	}](t, resp)
	assert.True(t, updated.OK)
	assert.Equal(t, 30, updated.Config.DrawSeconds)
	assert.Equal(t, 3, updated.Config.Rounds)

	assert.Equal(t, http.StatusBadRequest, doRequest(t, http.MethodPost, srv.URL+"/admin/config?lobby=2", "", "{").StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, http.MethodDelete, srv.URL+"/admin/config?lobby=2", "", "").StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/metrics?lobby=2", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "2", m["lobby"])
	assert.Contains(t, m["metrics"], "tick_count")

	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodGet, srv.URL+"/metrics?lobby=404", "", "").StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWSRequiresPlayer(t *testing.T) {
	_, srv := newTestServer(t)
	resp := doRequest(t, http.MethodGet, srv.URL+"/ws", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWSGameFlow(t *testing.T) {
	s, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := s.Sessions.Create("alice", 2)
	// joined 在收到历史后返回，此时加入与之前的订阅都已生效
	joined := func(c *transport.WS) {
		t.Helper()
		got := make(chan struct{}, 1)
		require.NoError(t, c.Subscribe(protocol.QueueDrawingHistory, func([]byte) {
			select {
			case got <- struct{}{}:
			default:
			}
		}))
		require.NoError(t, c.Subscribe(protocol.DrawingTopic("7"), func([]byte) {}))
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("history not delivered")
		}
	}

	words := make(chan protocol.WordAssignment, 8)
	states := make(chan protocol.GameState, 8)
	strokes := make(chan []protocol.DrawingEvent, 8)

	alice, err := transport.Dial(ctx, url, transport.Options{Lobby: "7", SessionID: sess.ID})
	require.NoError(t, err)
	defer alice.Close()
	require.NoError(t, alice.Subscribe(protocol.QueueWord, func(b []byte) {
		var w protocol.WordAssignment
		if json.Unmarshal(b, &w) == nil {
			words <- w
		}
	}))
	joined(alice)

	bob, err := transport.Dial(ctx, url, transport.Options{Lobby: "7", Player: "bob"})
	require.NoError(t, err)
	defer bob.Close()
	require.NoError(t, bob.Subscribe(protocol.GameStateTopic("7"), func(b []byte) {
		var gs protocol.GameState
		if json.Unmarshal(b, &gs) == nil {
			states <- gs
		}
	}))
	joined(bob)
	require.NoError(t, bob.Subscribe(protocol.DrawingTopic("7"), func(b []byte) {
		var evs []protocol.DrawingEvent
		if json.Unmarshal(b, &evs) == nil {
			strokes <- evs
		}
	}))

	require.NoError(t, alice.Publish(protocol.StartDestination("7"), struct{}{}))
	var gs protocol.GameState
	select {
	case gs = <-states:
	case <-time.After(5 * time.Second):
		t.Fatal("game state not delivered")
	}
	assert.Equal(t, "alice", gs.DrawerName)
	require.Len(t, gs.Players, 2)
	assert.Equal(t, protocol.Player{Username: "alice", Avatar: 2}, gs.Players[0])

	select {
	case w := <-words:
		assert.Equal(t, "apple", w.Word)
	case <-time.After(5 * time.Second):
		t.Fatal("word not delivered")
	}
	require.NoError(t, alice.Publish(protocol.DrawerAckDestination("7"), struct{}{}))

	batch := []protocol.DrawingEvent{protocol.PartialStroke(1, "s1", []protocol.Point{{X: 3, Y: 4}}, "#ff0000", 5)}
	require.NoError(t, alice.Publish(protocol.DrawingDestination("7"), batch))
	select {
	case got := <-strokes:
		assert.Equal(t, batch, got)
	case <-time.After(5 * time.Second):
		t.Fatal("drawing not relayed")
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/game/drawer?lobbyId=7", sess.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, protocol.DrawerInfo{IsDrawer: true, WordToDraw: "apple"}, decodeBody[protocol.DrawerInfo](t, resp))
}
