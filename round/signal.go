package round

// Signal 一次性通知：Fire 之后所有等待者各被调用一次，之后的 Wait 立即执行
// 只在事件循环上使用
type Signal struct {
	fired   bool
	waiters []func()
}

func NewSignal() *Signal { return &Signal{} }

func (s *Signal) Wait(f func()) {
	if s.fired {
		f()
		return
	}
	s.waiters = append(s.waiters, f)
}

func (s *Signal) Fire() {
	if s.fired {
		return
	}
	s.fired = true
	waiters := s.waiters
	s.waiters = nil
	for _, f := range waiters {
		f()
	}
}

func (s *Signal) Fired() bool { return s.fired }
