package server

import (
	"sync/atomic"
)

// LobbyMetrics 记录大厅运行期的关键指标（用于监控与调试）
type LobbyMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	InputsAccepted    int64 // 被接受的输入数
	RateLimited       int64 // 因发送频率超限被拒绝的输入数
	NotDrawerDropped  int64 // 非画手发来的绘图事件
	Malformed         int64 // 无法解析的帧或事件
	ChanFullDiscarded int64 // 因通道满被丢弃的输入数
	DrawingEvents     int64 // 转发的绘图事件数
	GuessesCorrect    int64
	GuessesClose      int64
	TurnsTimedOut     int64
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *LobbyMetrics) IncAccepted() { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *LobbyMetrics) IncRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }
func (m *LobbyMetrics) IncNotDrawer() { atomic.AddInt64(&m.NotDrawerDropped, 1) }
func (m *LobbyMetrics) IncMalformed() { atomic.AddInt64(&m.Malformed, 1) }
func (m *LobbyMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *LobbyMetrics) AddDrawingEvents(n int) {
	atomic.AddInt64(&m.DrawingEvents, int64(n))
}
func (m *LobbyMetrics) IncCorrect() { atomic.AddInt64(&m.GuessesCorrect, 1) }
func (m *LobbyMetrics) IncClose() { atomic.AddInt64(&m.GuessesClose, 1) }
func (m *LobbyMetrics) IncTimedOut() { atomic.AddInt64(&m.TurnsTimedOut, 1) }
func (m *LobbyMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *LobbyMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"not_drawer_dropped":  atomic.LoadInt64(&m.NotDrawerDropped),
		"malformed":           atomic.LoadInt64(&m.Malformed),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"drawing_events":      atomic.LoadInt64(&m.DrawingEvents),
		"guesses_correct":     atomic.LoadInt64(&m.GuessesCorrect),
		"guesses_close":       atomic.LoadInt64(&m.GuessesClose),
		"turns_timed_out":     atomic.LoadInt64(&m.TurnsTimedOut),
		"avg_tick_ms":         avgMs,
	}
}
