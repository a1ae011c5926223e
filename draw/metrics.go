package draw

import "sync/atomic"

// Metrics 绘图同步链路的计数（发送端与接收端共用）
type Metrics struct {
	BatchesSent      int64 // 发出的事件批次
	PointsSent       int64 // 随 partial-stroke 发出的点数
	DroppedNoSession int64 // 无会话时被丢弃的批次
	SendFailed       int64 // 发送失败被丢弃的批次
	EventsApplied    int64 // 接收端应用到画布的事件
	EventsDropped    int64 // 接收端丢弃的事件（格式错误、画布未就绪）
	FramesDrained    int64 // 执行过的帧
}

func (m *Metrics) IncBatches() { atomic.AddInt64(&m.BatchesSent, 1) }
func (m *Metrics) AddPoints(n int) { atomic.AddInt64(&m.PointsSent, int64(n)) }
func (m *Metrics) IncDroppedNoSession() { atomic.AddInt64(&m.DroppedNoSession, 1) }
func (m *Metrics) IncSendFailed() { atomic.AddInt64(&m.SendFailed, 1) }
func (m *Metrics) IncApplied() { atomic.AddInt64(&m.EventsApplied, 1) }
func (m *Metrics) IncDropped() { atomic.AddInt64(&m.EventsDropped, 1) }
func (m *Metrics) IncFrames() { atomic.AddInt64(&m.FramesDrained, 1) }

// Snapshot 返回只读副本，便于输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"batches_sent":       atomic.LoadInt64(&m.BatchesSent),
		"points_sent":        atomic.LoadInt64(&m.PointsSent),
		"dropped_no_session": atomic.LoadInt64(&m.DroppedNoSession),
		"send_failed":        atomic.LoadInt64(&m.SendFailed),
		"events_applied":     atomic.LoadInt64(&m.EventsApplied),
		"events_dropped":     atomic.LoadInt64(&m.EventsDropped),
		"frames_drained":     atomic.LoadInt64(&m.FramesDrained),
	}
}
