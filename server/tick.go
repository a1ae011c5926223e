package server

import "time"

const (
	// TicksPerSecond 大厅推进频率（20 TPS）
	TicksPerSecond = 20
)

var tickInterval = time.Duration(1000/TicksPerSecond) * time.Millisecond // 50ms

// Tick 一次推进：处理输入 → 推进回合 → 记录耗时
func (l *Lobby) Tick(now time.Time) {
	start := time.Now()
	l.ProcessInputs(now)
	l.UpdateGame(now)
	l.metrics.AddTick(time.Since(start).Nanoseconds())
}

// StartTicker 启动大厅的 Tick 循环（单线程推进）
func (l *Lobby) StartTicker() {
	if l.tickerStarted {
		return
	}
	l.tickerStarted = true
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case now := <-ticker.C:
				l.Tick(now)
			}
		}
	}()
}

// Stop 停止 Tick 循环，之后的查询返回 ErrLobbyStopped
func (l *Lobby) Stop() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
}
