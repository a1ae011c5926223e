package round

import "doodlesync/sched"

// RoundSession 一个回合内的全部易变状态；环境重置时整体替换
type RoundSession struct {
	gen uint64

	word     string
	hasWord  bool
	isDrawer bool

	wordOverlay bool // 画手刚拿到词时的大号提示

	waitingForDrawer bool // 遮罩等待中，倒计时尚未开始
	remaining        int
	awaitingServer   bool

	countdownStart sched.Timer
	ticker         sched.Timer
	warnTimer      sched.Timer
	exitTimer      sched.Timer
	wordTimer      sched.Timer
}

func newSession(gen uint64) *RoundSession {
	return &RoundSession{gen: gen}
}

func stopTimer(t *sched.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// stopCountdown 只停倒计时相关定时器（新的游戏状态会重新计时）
func (s *RoundSession) stopCountdown() {
	stopTimer(&s.countdownStart)
	stopTimer(&s.ticker)
	s.stopServerWait()
}

func (s *RoundSession) stopServerWait() {
	s.awaitingServer = false
	stopTimer(&s.warnTimer)
	stopTimer(&s.exitTimer)
}

func (s *RoundSession) stopAll() {
	s.stopCountdown()
	stopTimer(&s.wordTimer)
}
