package frame

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestFrameIsSingleShot(t *testing.T) {
	l := NewLoop(60)
	calls := 0
	l.RequestFrame(func(time.Time) { calls++ })

	l.Step(time.Now())
	l.Step(time.Now())
	assert.Equal(t, 1, calls)
}

func TestReschedulingRunsOnNextFrame(t *testing.T) {
	l := NewLoop(60)
	calls := 0
	var cb Callback
	cb = func(time.Time) {
		calls++
		l.RequestFrame(cb)
	}
	l.RequestFrame(cb)

	l.Step(time.Now())
	assert.Equal(t, 1, calls, "callback registered during a frame must wait")
	l.Step(time.Now())
	l.Step(time.Now())
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, l.Pending())
}

func TestPostRunsBeforeCallbacks(t *testing.T) {
	l := NewLoop(60)
	var order []string
	l.RequestFrame(func(time.Time) { order = append(order, "frame") })
	l.Post(func() { order = append(order, "post") })

	l.Step(time.Now())
	assert.Equal(t, []string{"post", "frame"}, order)
}

func TestFramePassesTimestamp(t *testing.T) {
	l := NewLoop(60)
	at := time.Unix(1700000000, 0)
	var got time.Time
	l.RequestFrame(func(now time.Time) { got = now })
	l.Step(at)
	assert.True(t, got.Equal(at))
}

func TestStartStop(t *testing.T) {
	l := NewLoop(200)
	var calls atomic.Int32
	var cb Callback
	cb = func(time.Time) {
		calls.Add(1)
		l.RequestFrame(cb)
	}
	l.RequestFrame(cb)

	l.Start()
	l.Start()
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	l.Stop()
	l.Stop()
	assert.GreaterOrEqual(t, l.Frames(), uint64(3))
}

func TestRestartAfterStop(t *testing.T) {
	l := NewLoop(200)
	var calls atomic.Int32
	var cb Callback
	cb = func(time.Time) {
		calls.Add(1)
		l.RequestFrame(cb)
	}
	l.RequestFrame(cb)

	l.Start()
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	l.Stop()

	before := calls.Load()
	l.Start()
	defer l.Stop()
	assert.Eventually(t, func() bool { return calls.Load() >= before+3 }, time.Second, 5*time.Millisecond)
}

func TestFrameEndRunsAfterCallbacks(t *testing.T) {
	l := NewLoop(60)
	var order []string
	l.OnFrameEnd(func(time.Time) { order = append(order, "end") })
	l.RequestFrame(func(time.Time) {
		order = append(order, "first")
		l.RequestFrame(func(time.Time) { order = append(order, "next") })
	})
	l.RequestFrame(func(time.Time) { order = append(order, "second") })

	l.Step(time.Now())
	assert.Equal(t, []string{"first", "second", "end"}, order)

	l.Step(time.Now())
	assert.Equal(t, []string{"first", "second", "end", "next", "end"}, order)
}
