// Package sched 提供单线程事件循环与可取消定时器
// 所有核心状态只在循环协程上读写；网络回调、指针输入、定时器都投递到这里执行
package sched

import (
	"context"
	"sync"
	"time"

	"doodlesync/logging"
)

// Timer 可取消的定时器；Stop 之后回调保证不再执行
type Timer interface {
	Stop()
}

// Scheduler 在同一线程上调度回调
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Every(d time.Duration, f func()) Timer
}

// Loop 单协程事件循环（类似房间 Tick 循环，但由事件驱动）
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop 创建事件循环；queue 为待执行回调的缓冲长度
func NewLoop(queue int) *Loop {
	if queue <= 0 {
		queue = 256
	}
	return &Loop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Post 投递回调到循环协程；循环已结束返回 false
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

// Call 投递并等待执行完成，便于从外部读取循环内的状态
func (l *Loop) Call(f func()) bool {
	ch := make(chan struct{})
	if !l.Post(func() { f(); close(ch) }) {
		return false
	}
	select {
	case <-ch:
		return true
	case <-l.done:
		return false
	}
}

// Run 阻塞执行回调，直到 ctx 结束
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-l.tasks:
			l.exec(f)
		}
	}
}

// Done 循环退出后关闭
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) exec(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Log.Errorw("loop task panicked", "panic", r)
		}
	}()
	f()
}

// loopTimer stopped 只在循环协程上读写
type loopTimer struct {
	t       *time.Timer
	stopped bool
}

// Stop 已经触发并排队的回调会在循环上检查 stopped 后跳过
func (t *loopTimer) Stop() {
	t.t.Stop()
	t.stopped = true
}

// AfterFunc d 之后在循环协程上执行 f；须在循环协程上调用 Stop
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped {
				return
			}
			lt.stopped = true
			f()
		})
	})
	return lt
}

type loopTicker struct {
	loop    *Loop
	d       time.Duration
	f       func()
	next    *loopTimer
	stopped bool
}

func (t *loopTicker) arm() {
	t.next = t.loop.AfterFunc(t.d, func() {
		if t.stopped {
			return
		}
		t.arm()
		t.f()
	}).(*loopTimer)
}

func (t *loopTicker) Stop() {
	t.stopped = true
	if t.next != nil {
		t.next.Stop()
	}
}

// Every 每隔 d 在循环协程上执行一次 f
func (l *Loop) Every(d time.Duration, f func()) Timer {
	t := &loopTicker{loop: l, d: d, f: f}
	t.arm()
	return t
}
