package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeFiresInDueOrder(t *testing.T) {
	f := NewFake()
	var got []string
	f.AfterFunc(3*time.Second, func() { got = append(got, "c") })
	f.AfterFunc(1*time.Second, func() { got = append(got, "a") })
	f.AfterFunc(2*time.Second, func() { got = append(got, "b") })

	f.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
	f.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, f.Pending())
}

func TestFakeChainedTimersFireAtExactInstants(t *testing.T) {
	f := NewFake()
	var at []time.Duration
	f.AfterFunc(10*time.Second, func() {
		at = append(at, f.Now())
		f.AfterFunc(10*time.Second, func() { at = append(at, f.Now()) })
	})

	f.Advance(25 * time.Second)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, at)
	assert.Equal(t, 25*time.Second, f.Now())
}

func TestFakeStopPreventsCallback(t *testing.T) {
	f := NewFake()
	fired := false
	tm := f.AfterFunc(time.Second, func() { fired = true })
	tm.Stop()
	f.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeEvery(t *testing.T) {
	f := NewFake()
	n := 0
	var tm Timer
	tm = f.Every(time.Second, func() {
		n++
		if n == 3 {
			tm.Stop()
		}
	})
	f.Advance(10 * time.Second)
	assert.Equal(t, 3, n)
}

func TestFakeStopFromEarlierCallbackAtSameInstant(t *testing.T) {
	f := NewFake()
	fired := false
	var second Timer
	f.AfterFunc(time.Second, func() { second.Stop() })
	second = f.AfterFunc(time.Second, func() { fired = true })
	f.Advance(time.Second)
	assert.False(t, fired)
}

func runLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop(16)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

func TestLoopRunsPostedTasksInOrder(t *testing.T) {
	l := runLoop(t)
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.True(t, l.Call(func() {}))
	l.Call(func() { assert.Equal(t, []int{0, 1, 2, 3, 4}, got) })
}

func TestLoopAfterFuncAndStop(t *testing.T) {
	l := runLoop(t)
	fired := make(chan struct{}, 1)
	l.Call(func() {
		l.AfterFunc(5*time.Millisecond, func() { fired <- struct{}{} })
	})
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	stoppedFired := make(chan struct{}, 1)
	l.Call(func() {
		tm := l.AfterFunc(time.Millisecond, func() { stoppedFired <- struct{}{} })
		// 让底层定时器先到期，回调排队之后再取消
		time.Sleep(10 * time.Millisecond)
		tm.Stop()
	})
	select {
	case <-stoppedFired:
		t.Fatal("stopped timer fired")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestLoopEvery(t *testing.T) {
	l := runLoop(t)
	ticks := make(chan struct{}, 10)
	var tm Timer
	l.Call(func() {
		tm = l.Every(2*time.Millisecond, func() {
			select {
			case ticks <- struct{}{}:
			default:
			}
		})
	})
	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("ticker stalled")
		}
	}
	l.Call(func() { tm.Stop() })
	for len(ticks) > 0 {
		<-ticks
	}
	select {
	case <-ticks:
		t.Fatal("ticker fired after stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLoopPostAfterShutdown(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Run(ctx)
	assert.False(t, l.Post(func() {}))
}
