package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"doodlesync/logging"
	"doodlesync/protocol"
)

var (
	ErrLobbyNotFound = errors.New("lobby not found")
	ErrNoGame        = errors.New("no game in progress")
	ErrLobbyStopped  = errors.New("lobby stopped")
)

// Lobby 大厅：成员、订阅、对局与本回合绘图历史，全部只在 Tick 协程上读写
type Lobby struct {
	ID string

	cfg   LobbyConfig
	words WordSource

	members map[PlayerID]*Member
	order   []PlayerID // 加入顺序，即画手轮换顺序

	inputChan chan Input
	joinChan  chan joinReq
	leaveChan chan leaveReq
	opsChan   chan func()

	game    *game
	history []protocol.DrawingEvent

	metrics *LobbyMetrics

	tickerStarted bool
	stop          chan struct{}
}

// NewLobby 创建大厅，初始化数据结构
func NewLobby(id string, cfg LobbyConfig, words WordSource) *Lobby {
	if words == nil {
		words = NewWordBank(nil, 0)
	}
	return &Lobby{
		ID:        id,
		cfg:       cfg,
		words:     words,
		members:   make(map[PlayerID]*Member),
		inputChan: make(chan Input, 1024), // 足够缓冲，避免网络读阻塞影响 Tick
		joinChan:  make(chan joinReq, 64),
		leaveChan: make(chan leaveReq, 64),
		opsChan:   make(chan func(), 64),
		metrics:   &LobbyMetrics{},
		stop:      make(chan struct{}),
	}
}

func (l *Lobby) Metrics() *LobbyMetrics { return l.metrics }

// Join 请求在 Tick 线程中加入（或以新连接替换）玩家
func (l *Lobby) Join(m *Member) {
	select {
	case l.joinChan <- joinReq{member: m}:
	case <-l.stop:
		m.Conn.Close()
	}
}

// RequestLeave 请求在 Tick 线程中移除连接，避免并发改动大厅状态
func (l *Lobby) RequestLeave(id PlayerID, conn Sink) {
	select {
	case l.leaveChan <- leaveReq{id: id, conn: conn}:
	case <-l.stop:
	}
}

// OnInput 入站输入，等下一次 Tick 处理；通道满时丢弃
func (l *Lobby) OnInput(in Input) {
	select {
	case l.inputChan <- in:
	default:
		l.metrics.IncChanFullDiscarded()
	}
}

// Query 在 Tick 线程上执行 fn 并等待完成（REST 读取与管理接口使用）
func (l *Lobby) Query(ctx context.Context, fn func()) error {
	select {
	case <-l.stop:
		return ErrLobbyStopped
	default:
	}
	done := make(chan struct{})
	op := func() {
		fn()
		close(done)
	}
	select {
	case l.opsChan <- op:
	case <-l.stop:
		return ErrLobbyStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.stop:
		return ErrLobbyStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessInputs 依次处理加入、输入、离开与查询（非阻塞 drain）
func (l *Lobby) ProcessInputs(now time.Time) {
joins:
	for {
		select {
		case j := <-l.joinChan:
			l.join(j.member)
		default:
			break joins
		}
	}
inputs:
	for {
		select {
		case in := <-l.inputChan:
			l.handleInput(in, now)
		default:
			break inputs
		}
	}
leaves:
	for {
		select {
		case lv := <-l.leaveChan:
			l.leave(lv)
		default:
			break leaves
		}
	}
	for {
		select {
		case op := <-l.opsChan:
			op()
		default:
			return
		}
	}
}

func (l *Lobby) join(m *Member) {
	if old, ok := l.members[m.ID]; ok {
		// 重连：保留顺序与得分，替换连接
		if old.Conn != nil && old.Conn != m.Conn {
			old.Conn.Close()
		}
		old.Conn = m.Conn
		old.Session = m.Session
		old.subs = make(map[string]bool)
		if g := l.game; g != nil && g.turn != nil && g.turn.drawer == m.ID {
			g.turn.acked = false
			g.turn.wordSentAt = time.Time{}
		}
		logging.Log.Infow("player rejoined", "lobby", l.ID, "player", m.ID)
		return
	}
	l.members[m.ID] = m
	l.order = append(l.order, m.ID)
	if g := l.game; g != nil && !g.over {
		if _, ok := g.scores[m.ID]; !ok {
			g.scores[m.ID] = 0
		}
	}
	logging.Log.Infow("player joined", "lobby", l.ID, "player", m.ID, "players", len(l.order))
}

// leave 连接断开：对局中保留玩家，否则移除
func (l *Lobby) leave(lv leaveReq) {
	m, ok := l.members[lv.id]
	if !ok || m.Conn != lv.conn {
		return
	}
	m.Conn.Close()
	m.Conn = nil
	if l.game != nil && !l.game.over {
		logging.Log.Infow("player disconnected", "lobby", l.ID, "player", m.ID)
		return
	}
	delete(l.members, m.ID)
	for i, id := range l.order {
		if id == m.ID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	logging.Log.Infow("player left", "lobby", l.ID, "player", m.ID, "players", len(l.order))
}

func (l *Lobby) handleInput(in Input, now time.Time) {
	m, ok := l.members[in.PlayerID]
	if !ok || (in.Conn != nil && m.Conn != in.Conn) {
		return
	}
	l.metrics.IncAccepted()

	switch in.Action {
	case ActionSubscribe:
		l.subscribe(m, in.Topic)
	case ActionUnsubscribe:
		delete(m.subs, in.Topic)
	case ActionDrawing:
		l.handleDrawing(m, in.Body)
	case ActionGuess:
		l.handleGuess(m, in.Body, now)
	case ActionStart:
		l.startGame(m, now)
	case ActionDrawerAck:
		l.handleAck(m)
	default:
		l.metrics.IncMalformed()
		logging.Log.Debugw("unknown action", "lobby", l.ID, "player", m.ID, "action", in.Action, "seq", in.Seq)
	}
}

func (l *Lobby) subscribe(m *Member, topic string) {
	m.subs[topic] = true
	if topic == protocol.DrawingTopic(l.ID) {
		history := l.history
		if history == nil {
			history = []protocol.DrawingEvent{}
		}
		l.sendTo(m, protocol.QueueDrawingHistory, history)
	}
}

func (l *Lobby) handleDrawing(m *Member, body json.RawMessage) {
	g := l.game
	if g == nil || g.turn == nil || g.turn.drawer != m.ID {
		l.metrics.IncNotDrawer()
		return
	}
	events, err := protocol.DecodeBatch(body)
	if err != nil {
		l.metrics.IncMalformed()
		logging.Log.Debugw("bad drawing batch", "lobby", l.ID, "player", m.ID, "err", err)
		return
	}
	valid := events[:0]
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			l.metrics.IncMalformed()
			continue
		}
		valid = append(valid, ev)
	}
	if len(valid) == 0 {
		return
	}
	for _, ev := range valid {
		if ev.Type == protocol.EventClear {
			l.history = l.history[:0]
		}
		l.history = append(l.history, ev)
	}
	l.metrics.AddDrawingEvents(len(valid))
	l.publish(protocol.DrawingTopic(l.ID), valid)
}

// publish 广播给订阅了 topic 的在线成员
func (l *Lobby) publish(topic string, body any) {
	b, err := encodeFrame(topic, body)
	if err != nil {
		logging.Log.Errorw("encode frame", "topic", topic, "err", err)
		return
	}
	for _, id := range l.order {
		m := l.members[id]
		if m.Conn != nil && m.subs[topic] {
			m.Conn.Enqueue(b)
		}
	}
}

// sendTo 私有队列消息，直接投递到该成员的连接
func (l *Lobby) sendTo(m *Member, queue string, body any) {
	if m.Conn == nil {
		return
	}
	b, err := encodeFrame(queue, body)
	if err != nil {
		logging.Log.Errorw("encode frame", "topic", queue, "err", err)
		return
	}
	m.Conn.Enqueue(b)
}

func encodeFrame(topic string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(protocol.Frame{Op: protocol.OpMessage, Topic: topic, Body: raw})
}

func (l *Lobby) players() []protocol.Player {
	out := make([]protocol.Player, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.members[id].toPlayer())
	}
	return out
}

func (l *Lobby) onlineCount() int {
	n := 0
	for _, m := range l.members {
		if m.Online() {
			n++
		}
	}
	return n
}

// ---- 供 REST 与管理接口使用（经 Query 在 Tick 线程执行） ----

// CurrentState 当前回合状态；RoundTime 为剩余秒数，用于断线恢复
func (l *Lobby) CurrentState(ctx context.Context, now time.Time) (protocol.GameState, error) {
	var (
		gs  protocol.GameState
		err error
	)
	qerr := l.Query(ctx, func() {
		g := l.game
		if g == nil || g.turn == nil {
			err = ErrNoGame
			return
		}
		gs = l.stateFor(g.turn.remainingSeconds(now))
	})
	if qerr != nil {
		return gs, qerr
	}
	return gs, err
}

// History 本回合的绘图历史
func (l *Lobby) History(ctx context.Context) ([]protocol.DrawingEvent, error) {
	out := []protocol.DrawingEvent{}
	err := l.Query(ctx, func() {
		out = append(out, l.history...)
	})
	return out, err
}

// DrawerInfo 该玩家是否为当前画手
func (l *Lobby) DrawerInfo(ctx context.Context, player PlayerID) (protocol.DrawerInfo, error) {
	var info protocol.DrawerInfo
	err := l.Query(ctx, func() {
		g := l.game
		if g != nil && g.turn != nil && g.turn.drawer == player {
			info = protocol.DrawerInfo{IsDrawer: true, WordToDraw: g.turn.word}
		}
	})
	return info, err
}

// Config 当前规则副本
func (l *Lobby) Config(ctx context.Context) (LobbyConfig, error) {
	var cfg LobbyConfig
	err := l.Query(ctx, func() { cfg = l.cfg })
	return cfg, err
}

// UpdateConfig 在 Tick 线程上修改规则
func (l *Lobby) UpdateConfig(ctx context.Context, fn func(*LobbyConfig)) (LobbyConfig, error) {
	var cfg LobbyConfig
	err := l.Query(ctx, func() {
		fn(&l.cfg)
		cfg = l.cfg
	})
	return cfg, err
}
