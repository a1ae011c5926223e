// Package client 把通道、回合状态机与画布串起来：
// 所有回调都投递到同一个执行器上，核心状态只在那里读写
package client

import (
	"context"
	"encoding/json"
	"image"
	"strings"
	"sync"
	"time"

	"doodlesync/draw"
	"doodlesync/logging"
	"doodlesync/paint"
	"doodlesync/protocol"
	"doodlesync/round"
	"doodlesync/sched"
	"doodlesync/transport"
)

// Executor 单协程执行器；sched.Loop 是生产实现
type Executor interface {
	sched.Scheduler
	Post(f func()) bool
}

// Client 一位玩家在一个大厅里的客户端
type Client struct {
	cfg  Config
	exec Executor
	ch   transport.Channel
	rest *REST

	raster  *paint.Raster
	tools   *draw.Toolbox
	metrics *draw.Metrics
	pacer   *draw.Pacer
	capture *draw.Capture
	recon   *draw.Reconciler
	machine *round.Machine

	notify    round.Notifier
	heartbeat sched.Timer
	ctx       context.Context
	cancel    context.CancelFunc

	exitOnce sync.Once
	exited   chan struct{}
	reason   string
}

// New 创建客户端；rest 为 nil 时不做断线恢复与心跳
func New(cfg Config, exec Executor, ch transport.Channel, rest *REST, notify round.Notifier) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		exec:    exec,
		ch:      ch,
		rest:    rest,
		raster:  paint.NewRaster(cfg.CanvasWidth, cfg.CanvasHeight),
		tools:   draw.NewToolbox(),
		metrics: &draw.Metrics{},
		notify:  notify,
		exited:  make(chan struct{}),
	}
	c.pacer = draw.NewPacer(publisher{ch: ch, dest: protocol.DrawingDestination(cfg.Lobby)}, cfg.PacerInterval, c.metrics)
	c.capture = draw.NewCapture(c.raster, c.pacer, c.tools)
	c.recon = draw.NewReconciler(exec, cfg.Reconciler, c.metrics)
	c.recon.Attach(c.raster)
	c.machine = round.NewMachine(cfg.Round, exec, c, exitHook{c}, c)
	return c
}

// publisher 把 Pacer 的批次发布到 relay
type publisher struct {
	ch   transport.Channel
	dest string
}

func (p publisher) SendDrawingEvents(events []protocol.DrawingEvent) error {
	return p.ch.Publish(p.dest, events)
}

// exitHook 在转发通知的同时记录退出
type exitHook struct{ c *Client }

func (h exitHook) Info(msg round.Message) {
	if h.c.notify != nil {
		h.c.notify.Info(msg)
	}
}

func (h exitHook) Warn(text string) {
	if h.c.notify != nil {
		h.c.notify.Warn(text)
	}
}

func (h exitHook) Exit(reason string) {
	if h.c.notify != nil {
		h.c.notify.Exit(reason)
	}
	h.c.exitOnce.Do(func() {
		h.c.reason = reason
		h.c.stopHeartbeat()
		close(h.c.exited)
	})
}

// Start 订阅全部 topic、进入对局并（可选）恢复进行中的回合
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	lobby := c.cfg.Lobby

	// 历史队列要在绘图 topic 之前订阅，relay 在订阅绘图 topic 时推送历史
	subs := []struct {
		topic string
		fn    func([]byte)
	}{
		{protocol.QueueDrawingHistory, c.onHistory},
		{protocol.DrawingTopic(lobby), c.onDrawing},
		{protocol.GameStateTopic(lobby), c.onGameState},
		{protocol.GuessTopic(lobby), c.onGuess},
		{protocol.QueueWord, c.onWord},
	}
	for _, s := range subs {
		if err := c.ch.Subscribe(s.topic, s.fn); err != nil {
			return err
		}
	}

	c.exec.Post(func() {
		c.machine.Start()
		c.startHeartbeat()
	})
	if c.cfg.Resume && c.rest != nil {
		go c.resume(c.ctx)
	}
	return nil
}

// resume 依次取回回合状态、绘图历史与画手信息，再一起交给执行器
func (c *Client) resume(ctx context.Context) {
	lobby := c.cfg.Lobby
	gs, err := c.rest.GameState(ctx, lobby)
	if err != nil {
		logging.Log.Warnw("resume: game state unavailable", "lobby", lobby, "err", err)
		return
	}
	history, err := c.rest.DrawingHistory(ctx, lobby)
	if err != nil {
		logging.Log.Warnw("resume: drawing history unavailable", "lobby", lobby, "err", err)
	}
	info, err := c.rest.DrawerInfo(ctx, lobby)
	if err != nil {
		logging.Log.Warnw("resume: drawer info unavailable", "lobby", lobby, "err", err)
		info = protocol.DrawerInfo{}
	}
	c.exec.Post(func() {
		c.recon.ReplayHistory(history)
		c.machine.Resume(gs, info)
		logging.Log.Infow("game resumed", "lobby", lobby, "drawer", info.IsDrawer, "history", len(history), "remaining", gs.RoundTime)
	})
}

func (c *Client) startHeartbeat() {
	if c.rest == nil || c.rest.Session() == "" || c.heartbeat != nil {
		return
	}
	ctx := c.ctx
	c.heartbeat = c.exec.Every(c.cfg.HeartbeatInterval, func() {
		go func() {
			hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := c.rest.Heartbeat(hctx); err != nil {
				logging.Log.Warnw("heartbeat failed", "err", err)
			}
		}()
	})
}

func (c *Client) stopHeartbeat() {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
}

// ---- 入站消息：在通道协程上解码，投递到执行器 ----

func (c *Client) onHistory(body []byte) {
	events, err := protocol.DecodeBatch(body)
	if err != nil {
		logging.Log.Warnw("bad drawing history", "err", err)
		return
	}
	c.exec.Post(func() { c.recon.ReplayHistory(events) })
}

func (c *Client) onDrawing(body []byte) {
	events, err := protocol.DecodeBatch(body)
	if err != nil {
		c.metrics.IncDropped()
		logging.Log.Warnw("bad drawing batch", "err", err)
		return
	}
	c.exec.Post(func() { c.recon.Receive(events) })
}

func (c *Client) onGameState(body []byte) {
	var gs protocol.GameState
	if err := json.Unmarshal(body, &gs); err != nil {
		logging.Log.Warnw("bad game state", "err", err)
		return
	}
	c.exec.Post(func() { c.machine.OnGameState(gs) })
}

func (c *Client) onGuess(body []byte) {
	var o protocol.GuessOutcome
	if err := json.Unmarshal(body, &o); err != nil {
		logging.Log.Warnw("bad guess outcome", "err", err)
		return
	}
	c.exec.Post(func() { c.machine.OnGuessOutcome(o) })
}

func (c *Client) onWord(body []byte) {
	var w protocol.WordAssignment
	if err := json.Unmarshal(body, &w); err != nil {
		logging.Log.Warnw("bad word message", "err", err)
		return
	}
	c.exec.Post(func() { c.machine.OnWordAssigned(w.Word) })
}

// ---- round.Stage 与 round.DrawerAcker ----

// BecomeDrawer 先拆掉猜词者角色再接上画手；非恢复时为所有人清屏
func (c *Client) BecomeDrawer(resumed bool) {
	c.recon.Reset()
	c.recon.SetDrawer(true)
	c.tools.Select(draw.ToolBrush)
	c.capture.Enable()
	c.pacer.Start(c.exec)
	if !resumed {
		c.capture.ClearCanvas()
	}
}

func (c *Client) BecomeGuesser(bool) {
	c.capture.Disable()
	c.pacer.Stop()
	c.tools.Reset()
	c.recon.SetDrawer(false)
}

func (c *Client) ResetEnvironment() {
	c.capture.Disable()
	c.pacer.Stop()
	c.tools.Reset()
	c.recon.Reset()
	c.recon.SetDrawer(false)
}

func (c *Client) ClearCanvas() { c.raster.Clear() }

func (c *Client) AckDrawer() {
	if err := c.ch.Publish(protocol.DrawerAckDestination(c.cfg.Lobby), struct{}{}); err != nil {
		logging.Log.Warnw("drawer ack failed", "err", err)
	}
}

// ---- 用户操作：从任意协程调用 ----

// StartGame 请求 relay 开始游戏
func (c *Client) StartGame() error {
	return c.ch.Publish(protocol.StartDestination(c.cfg.Lobby), struct{}{})
}

// Guess 提交猜测；空白忽略，超长截断
func (c *Client) Guess(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if r := []rune(text); len(r) > c.cfg.MaxGuessLength {
		text = string(r[:c.cfg.MaxGuessLength])
	}
	return c.ch.Publish(protocol.GuessDestination(c.cfg.Lobby), protocol.Guess{Guess: text})
}

func (c *Client) PointerDown(p protocol.Point) { c.exec.Post(func() { c.capture.PointerDown(p) }) }
func (c *Client) PointerMove(p protocol.Point) { c.exec.Post(func() { c.capture.PointerMove(p) }) }
func (c *Client) PointerUp() { c.exec.Post(c.capture.PointerUp) }
func (c *Client) ClearDrawing() { c.exec.Post(c.capture.ClearCanvas) }
func (c *Client) SelectTool(t draw.Tool) { c.exec.Post(func() { c.tools.Select(t) }) }
func (c *Client) SetLineWidth(w float64) { c.exec.Post(func() { c.tools.SetLineWidth(w) }) }

// SetColor 颜色非法时返回 paint.ErrInvalidColor
func (c *Client) SetColor(hex string) error {
	var err error
	c.call(func() { err = c.tools.SetColor(hex) })
	return err
}

// Snapshot 画布当前内容的副本
func (c *Client) Snapshot() *image.RGBA {
	var img *image.RGBA
	c.call(func() {
		src := c.raster.Image()
		img = image.NewRGBA(src.Rect)
		copy(img.Pix, src.Pix)
	})
	return img
}

// View 供界面读取的只读状态
type View struct {
	Phase          round.Phase
	IsDrawer       bool
	Word           string
	Remaining      int
	Progress       float64
	Band           round.Band
	State          protocol.GameState
	Scores         []round.Score
	Overlay        round.Overlay
	OverlayShown   bool
	TotalRounds    int
	DrawingsInTurn int
}

func (c *Client) View() View {
	var v View
	c.call(func() {
		m := c.machine
		v = View{
			Phase:          m.Phase(),
			IsDrawer:       m.IsDrawer(),
			Word:           m.Word(),
			Remaining:      m.Remaining(),
			State:          m.State(),
			Scores:         m.Scores(),
			TotalRounds:    m.TotalRounds(),
			DrawingsInTurn: m.DrawingsInRound(),
		}
		v.Progress, v.Band = m.Progress()
		v.Overlay, v.OverlayShown = m.Overlay()
	})
	return v
}

// Metrics 发送与重放计数
func (c *Client) Metrics() map[string]any { return c.metrics.Snapshot() }

// Exited 状态机要求离开对局时关闭
func (c *Client) Exited() <-chan struct{} { return c.exited }

// ExitReason 仅在 Exited 关闭后有效
func (c *Client) ExitReason() string {
	select {
	case <-c.exited:
		return c.reason
	default:
		return ""
	}
}

// Close 离开对局：取消定时器并关闭通道
func (c *Client) Close() error {
	c.call(func() {
		c.stopHeartbeat()
		c.machine.Close()
	})
	if c.cancel != nil {
		c.cancel()
	}
	return c.ch.Close()
}

// call 投递并等待完成；执行器已停止时直接返回
func (c *Client) call(f func()) {
	done := make(chan struct{})
	if !c.exec.Post(func() { f(); close(done) }) {
		return
	}
	if d, ok := c.exec.(interface{ Done() <-chan struct{} }); ok {
		select {
		case <-done:
		case <-d.Done():
		}
		return
	}
	<-done
}
