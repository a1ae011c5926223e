package draw

import (
	"time"

	"doodlesync/logging"
	"doodlesync/protocol"
	"doodlesync/sched"
)

// DefaultInterval 增量笔画发送周期（60Hz）
const DefaultInterval = time.Second / 60

// Sender 把一批绘图事件交给网络层；尽力而为，至多一次
type Sender interface {
	SendDrawingEvents(events []protocol.DrawingEvent) error
}

// Stroke 一次连续手势；停止后不再修改
type Stroke struct {
	ID        string
	Color     string
	LineWidth float64
	Points    []protocol.Point
}

// Pacer 以固定节拍把未发送的点打包成 partial-stroke
// stop/clear/fill 立即发送；sequence 按连接递增，Reset 不会回退
type Pacer struct {
	sender   Sender
	interval time.Duration
	metrics  *Metrics

	seq      int64
	stroke   *Stroke
	lastSent int

	tick sched.Timer
}

func NewPacer(sender Sender, interval time.Duration, m *Metrics) *Pacer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if m == nil {
		m = &Metrics{}
	}
	return &Pacer{sender: sender, interval: interval, metrics: m}
}

// SetSender 切换会话；nil 表示当前没有会话，事件会被丢弃
func (p *Pacer) SetSender(s Sender) { p.sender = s }

// Start 开始节拍；重复调用无效
func (p *Pacer) Start(s sched.Scheduler) {
	if p.tick != nil {
		return
	}
	p.tick = s.Every(p.interval, p.Tick)
}

// Stop 停止节拍，不发送剩余点
func (p *Pacer) Stop() {
	if p.tick != nil {
		p.tick.Stop()
		p.tick = nil
	}
}

func (p *Pacer) Running() bool { return p.tick != nil }

// Open 开始跟踪新的笔画
func (p *Pacer) Open(st *Stroke) {
	p.stroke = st
	p.lastSent = 0
}

// Tick 发送自上次以来新增的点；没有新增则什么也不发
func (p *Pacer) Tick() {
	st := p.stroke
	if st == nil || p.lastSent >= len(st.Points) {
		return
	}
	pts := make([]protocol.Point, len(st.Points)-p.lastSent)
	copy(pts, st.Points[p.lastSent:])
	p.lastSent = len(st.Points)

	p.seq++
	ev := protocol.PartialStroke(p.seq, st.ID, pts, st.Color, st.LineWidth)
	if p.send(ev) {
		p.metrics.AddPoints(len(pts))
	}
}

// Finish 先冲刷剩余点，再发送 stop
func (p *Pacer) Finish() {
	st := p.stroke
	if st == nil {
		return
	}
	p.Tick()
	p.send(protocol.Stop(st.ID))
	p.stroke = nil
	p.lastSent = 0
}

func (p *Pacer) SendFill(pos protocol.Point, color string) {
	p.seq++
	p.send(protocol.Fill(p.seq, pos, color))
}

func (p *Pacer) SendClear() {
	p.send(protocol.Clear())
}

// Reset 丢弃未完成的笔画与未发送的点
func (p *Pacer) Reset() {
	p.stroke = nil
	p.lastSent = 0
}

func (p *Pacer) Metrics() *Metrics { return p.metrics }

func (p *Pacer) send(ev protocol.DrawingEvent) bool {
	if p.sender == nil {
		p.metrics.IncDroppedNoSession()
		return false
	}
	if err := p.sender.SendDrawingEvents([]protocol.DrawingEvent{ev}); err != nil {
		p.metrics.IncSendFailed()
		logging.Log.Warnw("drawing event dropped", "type", ev.Type, "seq", ev.Sequence, "err", err)
		return false
	}
	p.metrics.IncBatches()
	return true
}
