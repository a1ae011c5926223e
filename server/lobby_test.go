package server

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doodlesync/protocol"
)

type fixedWords string

func (w fixedWords) Pick() string { return string(w) }

// fakeSink 记录投递给连接的帧
type fakeSink struct {
	mu     sync.Mutex
	frames []protocol.Frame
	closed bool
}

func (s *fakeSink) Enqueue(b []byte) {
	var f protocol.Frame
	if err := json.Unmarshal(b, &f); err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func (s *fakeSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSink) on(topic string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []json.RawMessage
	for _, f := range s.frames {
		if f.Topic == topic {
			out = append(out, f.Body)
		}
	}
	return out
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func decodeLast[T any](t *testing.T, bodies []json.RawMessage) T {
	t.Helper()
	require.NotEmpty(t, bodies)
	var v T
	require.NoError(t, json.Unmarshal(bodies[len(bodies)-1], &v))
	return v
}

type lobbyRig struct {
	t     *testing.T
	lobby *Lobby
	now   time.Time
	sinks map[PlayerID]*fakeSink
}

func newLobbyRig(t *testing.T, cfg LobbyConfig, players ...PlayerID) *lobbyRig {
	r := &lobbyRig{
		t:     t,
		lobby: NewLobby("1", cfg, fixedWords("apple")),
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		sinks: make(map[PlayerID]*fakeSink),
	}
	for _, p := range players {
		r.connect(p)
		r.send(p, ActionSubscribe, protocol.GameStateTopic("1"), nil)
		r.send(p, ActionSubscribe, protocol.GuessTopic("1"), nil)
	}
	r.tick(0)
	return r
}

func (r *lobbyRig) connect(p PlayerID) *fakeSink {
	s := &fakeSink{}
	r.sinks[p] = s
	r.lobby.Join(newMember(p, "", 0, s))
	return s
}

func (r *lobbyRig) send(p PlayerID, a Action, topic string, body any) {
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(r.t, err)
		raw = b
	}
	r.lobby.OnInput(Input{PlayerID: p, Conn: r.sinks[p], Action: a, Topic: topic, Body: raw})
}

func (r *lobbyRig) tick(d time.Duration) {
	r.now = r.now.Add(d)
	r.lobby.Tick(r.now)
}

func (r *lobbyRig) start() {
	r.send("alice", ActionStart, "", nil)
	r.tick(0)
}

func (r *lobbyRig) state(p PlayerID) protocol.GameState {
	return decodeLast[protocol.GameState](r.t, r.sinks[p].on(protocol.GameStateTopic("1")))
}

func (r *lobbyRig) outcome(p PlayerID) protocol.GuessOutcome {
	return decodeLast[protocol.GuessOutcome](r.t, r.sinks[p].on(protocol.GuessTopic("1")))
}

func TestStartNeedsEnoughPlayers(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice")
	r.start()
	assert.Nil(t, r.lobby.game)
	assert.Empty(t, r.sinks["alice"].on(protocol.GameStateTopic("1")))
}

func TestStartAssignsFirstDrawer(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob")
	r.start()

	gs := r.state("bob")
	assert.Equal(t, "alice", gs.DrawerName)
	assert.Equal(t, 65, gs.RoundTime)
	assert.Equal(t, 3, gs.RemainingRounds)
	assert.Equal(t, 0, gs.CurrentDrawerIndex)
	assert.Equal(t, []protocol.Player{{Username: "alice"}, {Username: "bob"}}, gs.Players)
	assert.Equal(t, map[string]int{"alice": 0, "bob": 0}, gs.PlayerScores)

	w := decodeLast[protocol.WordAssignment](t, r.sinks["alice"].on(protocol.QueueWord))
	assert.Equal(t, "apple", w.Word)
	assert.Empty(t, r.sinks["bob"].on(protocol.QueueWord))

	// 对局中再次开始无效
	r.start()
	assert.Len(t, r.sinks["bob"].on(protocol.GameStateTopic("1")), 1)
}

func TestWordResentUntilAck(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob")
	r.start()
	require.Len(t, r.sinks["alice"].on(protocol.QueueWord), 1)

	r.tick(time.Second)
	assert.Len(t, r.sinks["alice"].on(protocol.QueueWord), 1)
	r.tick(time.Second)
	assert.Len(t, r.sinks["alice"].on(protocol.QueueWord), 2)

	r.send("alice", ActionDrawerAck, "", nil)
	r.tick(5 * time.Second)
	assert.Len(t, r.sinks["alice"].on(protocol.QueueWord), 2)
}

func TestDrawingRelayAndHistory(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob")
	r.start()
	drawing := protocol.DrawingTopic("1")
	r.send("bob", ActionSubscribe, drawing, nil)
	r.tick(0)
	assert.Equal(t, []protocol.DrawingEvent{}, decodeLast[[]protocol.DrawingEvent](t, r.sinks["bob"].on(protocol.QueueDrawingHistory)))

	batch := []protocol.DrawingEvent{
		protocol.PartialStroke(1, "s1", []protocol.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, "#000000", 5),
		protocol.Stop("s1"),
		{Type: "bogus"},
	}
	r.send("alice", ActionDrawing, "", batch)
	r.tick(0)

	got := decodeLast[[]protocol.DrawingEvent](t, r.sinks["bob"].on(drawing))
	assert.Equal(t, batch[:2], got)
	assert.EqualValues(t, 2, r.lobby.metrics.DrawingEvents)
	assert.EqualValues(t, 1, r.lobby.metrics.Malformed)

	// 非画手的绘图被丢弃
	r.send("bob", ActionDrawing, "", batch[:1])
	r.tick(0)
	assert.Len(t, r.sinks["bob"].on(drawing), 1)
	assert.EqualValues(t, 1, r.lobby.metrics.NotDrawerDropped)

	// 新加入者订阅后拿到历史
	r.connect("carol")
	r.send("carol", ActionSubscribe, drawing, nil)
	r.tick(0)
	assert.Equal(t, batch[:2], decodeLast[[]protocol.DrawingEvent](t, r.sinks["carol"].on(protocol.QueueDrawingHistory)))

	// clear 之后历史只剩 clear
	r.send("alice", ActionDrawing, "", []protocol.DrawingEvent{protocol.Clear()})
	r.tick(0)
	assert.Equal(t, []protocol.DrawingEvent{protocol.Clear()}, r.lobby.history)
}

func TestCorrectGuessScoresAndAdvances(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob")
	r.start()
	r.tick(10 * time.Second)

	r.send("bob", ActionGuess, "", protocol.Guess{Guess: "  Apple "})
	r.tick(0)

	out := r.outcome("alice")
	assert.Equal(t, protocol.GuessOutcome{Status: protocol.GuessCorrect, UserThatGuessed: "bob", Word: "apple"}, out)

	gs := r.state("alice")
	assert.Equal(t, "bob", gs.DrawerName)
	assert.Equal(t, 70, gs.RoundTime)
	assert.Equal(t, 1, gs.CurrentDrawerIndex)
	assert.Equal(t, map[string]int{"alice": 50, "bob": 155}, gs.PlayerScores)
	assert.EqualValues(t, 1, r.lobby.metrics.GuessesCorrect)
}

func TestIncorrectAndCloseGuesses(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob")
	r.start()

	r.send("bob", ActionGuess, "", protocol.Guess{Guess: "appel"})
	r.tick(0)
	assert.Equal(t, protocol.GuessOutcome{Status: protocol.GuessIncorrect, UserThatGuessed: "bob", Word: "appel", Close: true}, r.outcome("alice"))

	r.send("bob", ActionGuess, "", protocol.Guess{Guess: "banana"})
	r.tick(0)
	assert.Equal(t, protocol.GuessOutcome{Status: protocol.GuessIncorrect, UserThatGuessed: "bob", Word: "banana"}, r.outcome("alice"))

	// 画手自己猜与空白猜测被忽略
	r.send("alice", ActionGuess, "", protocol.Guess{Guess: "apple"})
	r.send("bob", ActionGuess, "", protocol.Guess{Guess: "   "})
	r.tick(0)
	assert.Len(t, r.sinks["alice"].on(protocol.GuessTopic("1")), 2)
	assert.Equal(t, "alice", r.state("bob").DrawerName)
}

func TestTurnTimeout(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob")
	r.start()

	r.tick(64 * time.Second)
	assert.Empty(t, r.sinks["bob"].on(protocol.GuessTopic("1")))

	r.tick(time.Second)
	assert.Equal(t, protocol.GuessOutcome{Status: protocol.GuessTimeout, Word: "apple"}, r.outcome("bob"))
	assert.Equal(t, "bob", r.state("alice").DrawerName)
	assert.EqualValues(t, 1, r.lobby.metrics.TurnsTimedOut)
}

func TestGameOverAfterLastRound(t *testing.T) {
	cfg := DefaultLobbyConfig()
	cfg.Rounds = 1
	r := newLobbyRig(t, cfg, "alice", "bob")
	r.start()

	r.tick(65 * time.Second)
	assert.Equal(t, "bob", r.state("alice").DrawerName)
	r.tick(70 * time.Second)

	gs := r.state("alice")
	assert.Equal(t, "", gs.DrawerName)
	assert.Equal(t, 0, gs.RoundTime)
	assert.Equal(t, 0, gs.RemainingRounds)
	assert.True(t, r.lobby.game.over)

	// 结束后可以重新开始
	r.start()
	assert.Equal(t, "alice", r.state("bob").DrawerName)
}

func TestOfflineDrawerSkipped(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob", "carol")
	r.start()
	r.lobby.RequestLeave("bob", r.sinks["bob"])
	r.tick(65 * time.Second)

	assert.True(t, r.sinks["bob"].isClosed())
	assert.Equal(t, "carol", r.state("alice").DrawerName)
	assert.Equal(t, 2, r.state("alice").CurrentDrawerIndex)
	// 对局中断线的玩家仍在名单里
	assert.Len(t, r.state("alice").Players, 3)
}

func TestReconnectReplacesConnection(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob")
	r.start()
	r.send("alice", ActionDrawerAck, "", nil)
	r.tick(0)

	old := r.sinks["alice"]
	fresh := r.connect("alice")
	r.tick(0)

	assert.True(t, old.isClosed())
	// 画手重连后重新下发词
	assert.Equal(t, "apple", decodeLast[protocol.WordAssignment](t, fresh.on(protocol.QueueWord)).Word)

	// 旧连接的迟到输入与离开请求都被忽略
	r.lobby.OnInput(Input{PlayerID: "alice", Conn: old, Action: ActionDrawing, Body: json.RawMessage(`[{"type":"clear"}]`)})
	r.lobby.RequestLeave("alice", old)
	r.tick(0)
	assert.True(t, r.lobby.members["alice"].Online())
	assert.EqualValues(t, 0, r.lobby.metrics.DrawingEvents)
}

func TestLeaveOutsideGameRemovesMember(t *testing.T) {
	r := newLobbyRig(t, DefaultLobbyConfig(), "alice", "bob")
	r.lobby.RequestLeave("bob", r.sinks["bob"])
	r.tick(0)
	assert.NotContains(t, r.lobby.members, PlayerID("bob"))
	assert.Equal(t, []PlayerID{"alice"}, r.lobby.order)
}

func TestQueriesRunOnTicker(t *testing.T) {
	l := NewLobby("q", DefaultLobbyConfig(), fixedWords("apple"))
	l.StartTicker()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := l.CurrentState(ctx, time.Now())
	assert.ErrorIs(t, err, ErrNoGame)

	history, err := l.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	info, err := l.DrawerInfo(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, info.IsDrawer)

	cfg, err := l.UpdateConfig(ctx, func(c *LobbyConfig) { c.DrawSeconds = 30 })
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.DrawSeconds)

	l.Stop()
	_, err = l.Config(ctx)
	assert.ErrorIs(t, err, ErrLobbyStopped)
}

func TestQueryHonoursContext(t *testing.T) {
	l := NewLobby("q", DefaultLobbyConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// 没有 Tick 循环时查询等到超时
	_, err := l.Config(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
