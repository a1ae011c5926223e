package draw

import (
	"sort"
	"time"

	"doodlesync/logging"
	"doodlesync/paint"
	"doodlesync/protocol"
	"doodlesync/sched"
)

// DefaultFrameInterval 接收端每帧排空一次缓冲（约 60fps）
const DefaultFrameInterval = 16 * time.Millisecond

type ReconcilerConfig struct {
	FrameInterval time.Duration
	MaxPerFrame   int // 每帧最多应用的事件数，0 表示全部
}

// Reconciler 接收端：缓冲、按 sequence 稳定排序、按帧重放到画布
// 有序事件（partial-stroke、带序号的 fill）进入缓冲；stop/clear 等控制事件是屏障：
// 先排空缓冲再立即应用，保持与数据事件的到达顺序
type Reconciler struct {
	sched   sched.Scheduler
	cfg     ReconcilerConfig
	metrics *Metrics

	surface Surface
	drawer  bool

	buffer []protocol.DrawingEvent
	frame  sched.Timer

	inStroke  bool
	strokeID  string
	lastPoint *protocol.Point
}

func NewReconciler(s sched.Scheduler, cfg ReconcilerConfig, m *Metrics) *Reconciler {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if m == nil {
		m = &Metrics{}
	}
	return &Reconciler{sched: s, cfg: cfg, metrics: m}
}

// Attach 绑定画布；nil 表示画布尚未就绪
func (r *Reconciler) Attach(s Surface) { r.surface = s }

// SetDrawer 本地是画手时忽略远端绘图事件
func (r *Reconciler) SetDrawer(drawer bool) { r.drawer = drawer }

func (r *Reconciler) InStroke() bool { return r.inStroke }
func (r *Reconciler) StrokeID() string { return r.strokeID }
func (r *Reconciler) Pending() int { return len(r.buffer) }

// Receive 接收一批远端事件，重放推迟到下一帧
func (r *Reconciler) Receive(batch []protocol.DrawingEvent) {
	if r.drawer {
		logging.Log.Debugw("drawing batch ignored while drawer", "events", len(batch))
		return
	}
	for _, ev := range batch {
		if err := ev.Validate(); err != nil {
			r.metrics.IncDropped()
			logging.Log.Warnw("malformed drawing event", "err", err)
			continue
		}
		if ev.Ordered() {
			r.buffer = append(r.buffer, ev)
			continue
		}
		r.flush()
		r.apply(ev)
	}
	if len(r.buffer) > 0 {
		r.requestFrame()
	}
}

// ReplayHistory 按给定顺序立即重放历史事件（断线恢复，画手同样适用）
func (r *Reconciler) ReplayHistory(events []protocol.DrawingEvent) {
	r.flush()
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			r.metrics.IncDropped()
			logging.Log.Warnw("malformed history event", "err", err)
			continue
		}
		r.apply(ev)
	}
}

// Frame 排序并应用缓冲中的事件（至多 MaxPerFrame 个），剩余的留到下一帧
func (r *Reconciler) Frame() {
	r.frame = nil
	if len(r.buffer) == 0 {
		return
	}
	r.metrics.IncFrames()
	r.sortBuffer()

	n := len(r.buffer)
	if r.cfg.MaxPerFrame > 0 && n > r.cfg.MaxPerFrame {
		n = r.cfg.MaxPerFrame
	}
	batch := r.buffer[:n]
	rest := make([]protocol.DrawingEvent, len(r.buffer)-n)
	copy(rest, r.buffer[n:])
	r.buffer = rest

	for _, ev := range batch {
		r.apply(ev)
	}
	if len(r.buffer) > 0 {
		r.requestFrame()
	}
}

// Reset 清空缓冲与笔画跟踪，不动画布
func (r *Reconciler) Reset() {
	r.buffer = nil
	r.cancelFrame()
	r.endStroke()
}

func (r *Reconciler) requestFrame() {
	if r.frame != nil || r.sched == nil {
		return
	}
	r.frame = r.sched.AfterFunc(r.cfg.FrameInterval, r.Frame)
}

func (r *Reconciler) cancelFrame() {
	if r.frame != nil {
		r.frame.Stop()
		r.frame = nil
	}
}

func (r *Reconciler) flush() {
	if len(r.buffer) == 0 {
		return
	}
	r.sortBuffer()
	pending := r.buffer
	r.buffer = nil
	r.cancelFrame()
	for _, ev := range pending {
		r.apply(ev)
	}
}

func (r *Reconciler) sortBuffer() {
	sort.SliceStable(r.buffer, func(i, j int) bool {
		return r.buffer[i].Sequence < r.buffer[j].Sequence
	})
}

func (r *Reconciler) endStroke() {
	r.inStroke = false
	r.strokeID = ""
	r.lastPoint = nil
}

func (r *Reconciler) apply(ev protocol.DrawingEvent) {
	if r.surface == nil {
		r.metrics.IncDropped()
		logging.Log.Warnw("canvas not ready, drawing event dropped", "type", ev.Type, "seq", ev.Sequence)
		return
	}

	switch ev.Type {
	case protocol.EventClear:
		r.surface.Clear()
		r.endStroke()

	case protocol.EventFill:
		if !validColor(ev) {
			r.metrics.IncDropped()
			return
		}
		r.surface.Fill(*ev.Position, ev.Color)

	case protocol.EventStop:
		if !r.inStroke || r.strokeID != ev.StrokeID {
			logging.Log.Debugw("stop for unknown stroke", "strokeId", ev.StrokeID)
			return
		}
		r.surface.ClosePath()
		r.endStroke()

	case protocol.EventPartialStroke:
		if len(ev.Points) == 0 {
			logging.Log.Debugw("partial stroke without points", "strokeId", ev.StrokeID, "seq", ev.Sequence)
			return
		}
		if !validColor(ev) {
			r.metrics.IncDropped()
			return
		}
		r.drawPartial(ev)
	}
	r.metrics.IncApplied()
}

func (r *Reconciler) drawPartial(ev protocol.DrawingEvent) {
	r.surface.SetStrokeStyle(ev.Color)
	r.surface.SetLineWidth(ev.LineWidth)

	if !r.inStroke || r.strokeID != ev.StrokeID {
		if r.inStroke {
			r.surface.ClosePath()
		}
		r.surface.BeginPath()
		r.inStroke = true
		r.strokeID = ev.StrokeID
		r.lastPoint = nil
	}

	for _, p := range ev.Points {
		if r.lastPoint == nil {
			r.surface.MoveTo(p)
		} else {
			r.surface.LineTo(p)
			r.surface.Stroke()
		}
		pt := p
		r.lastPoint = &pt
	}
}

func validColor(ev protocol.DrawingEvent) bool {
	if _, err := paint.ParseHexColor(ev.Color); err != nil {
		logging.Log.Warnw("drawing event with bad color", "type", ev.Type, "color", ev.Color, "err", err)
		return false
	}
	return true
}
