package sched

import "time"

// Fake 手动推进的时钟，按到期时间顺序精确触发回调，用于测试
// 非并发安全：测试在单个 goroutine 中驱动
type Fake struct {
	now    time.Duration
	seq    int64
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	every   time.Duration
	seq     int64
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

func NewFake() *Fake { return &Fake{} }

// Now 自创建以来经过的虚拟时间
func (f *Fake) Now() time.Duration { return f.now }

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	return f.add(d, 0, fn)
}

func (f *Fake) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = time.Nanosecond
	}
	return f.add(d, d, fn)
}

func (f *Fake) add(d, every time.Duration, fn func()) *fakeTimer {
	if d < 0 {
		d = 0
	}
	f.seq++
	t := &fakeTimer{at: f.now + d, every: every, seq: f.seq, f: fn}
	f.timers = append(f.timers, t)
	return t
}

// Pending 尚未触发且未取消的定时器数量
func (f *Fake) Pending() int {
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Advance 推进 d，期间到期的回调（包括回调里新建的）按时间先后执行
func (f *Fake) Advance(d time.Duration) {
	target := f.now + d
	for {
		t := f.nextDue(target)
		if t == nil {
			break
		}
		f.now = t.at
		if t.every > 0 {
			t.at += t.every
		} else {
			t.stopped = true
		}
		t.f()
	}
	f.now = target
	f.compact()
}

// AdvanceTo 推进到绝对虚拟时间 at
func (f *Fake) AdvanceTo(at time.Duration) {
	if at > f.now {
		f.Advance(at - f.now)
	}
}

func (f *Fake) nextDue(target time.Duration) *fakeTimer {
	var best *fakeTimer
	for _, t := range f.timers {
		if t.stopped || t.at > target {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (f *Fake) compact() {
	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(f.timers); i++ {
		f.timers[i] = nil
	}
	f.timers = live
}
