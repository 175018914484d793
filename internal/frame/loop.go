// Package frame provides the host's per-frame callback facility.
//
// It plays the role requestAnimationFrame plays in a browser: callbacks are
// single-shot and must re-register themselves to keep animating. Every
// callback, posted task and Do block runs in one execution context, so the
// scene graph needs no locking.
package frame

import (
	"log"
	"sync"
	"time"

	"vibeverse/internal/telemetry"
)

// Callback is invoked once with the frame timestamp.
type Callback func(now time.Time)

// Scheduler is the subset of the loop the animation code depends on.
type Scheduler interface {
	RequestFrame(cb Callback)
}

// Loop runs frames on a ticker or, in tests, when stepped manually.
type Loop struct {
	runMu sync.Mutex // held while a frame or a Do block executes

	queueMu  sync.Mutex
	pending  []Callback
	posted   []func()
	frameEnd []Callback

	fps      int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	frames   uint64
}

// NewLoop creates a loop that ticks fps times per second once started.
func NewLoop(fps int) *Loop {
	if fps <= 0 {
		fps = 60
	}
	return &Loop{fps: fps}
}

// RequestFrame schedules cb for the next frame. Callbacks registered while
// a frame is running are deferred to the following frame.
func (l *Loop) RequestFrame(cb Callback) {
	l.queueMu.Lock()
	l.pending = append(l.pending, cb)
	l.queueMu.Unlock()
}

// Post schedules fn to run at the start of the next frame. It is the way
// goroutines hand results back to the frame context.
func (l *Loop) Post(fn func()) {
	l.queueMu.Lock()
	l.posted = append(l.posted, fn)
	l.queueMu.Unlock()
}

// OnFrameEnd registers cb to run at the end of every frame, after all
// callbacks of that frame have returned. Unlike RequestFrame it stays
// registered.
func (l *Loop) OnFrameEnd(cb Callback) {
	l.queueMu.Lock()
	l.frameEnd = append(l.frameEnd, cb)
	l.queueMu.Unlock()
}

// Do runs fn synchronously between frames.
func (l *Loop) Do(fn func()) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	fn()
}

// Pending returns the number of callbacks waiting for the next frame.
func (l *Loop) Pending() int {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	return len(l.pending)
}

// Frames returns the number of frames executed so far.
func (l *Loop) Frames() uint64 {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.frames
}

// Step executes one frame at the given time.
func (l *Loop) Step(now time.Time) {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	start := time.Now()

	l.queueMu.Lock()
	posted := l.posted
	callbacks := l.pending
	frameEnd := l.frameEnd
	l.posted = nil
	l.pending = nil
	l.queueMu.Unlock()

	for _, fn := range posted {
		fn()
	}
	for _, cb := range callbacks {
		cb(now)
	}
	for _, cb := range frameEnd {
		cb(now)
	}
	l.frames++

	telemetry.RecordFrame(time.Since(start))
}

// Start begins ticking frames in the background.
func (l *Loop) Start() {
	l.runMu.Lock()
	if l.running {
		l.runMu.Unlock()
		return
	}
	l.running = true
	l.ticker = time.NewTicker(time.Second / time.Duration(l.fps))
	l.stopChan = make(chan struct{})
	ticker, stop := l.ticker, l.stopChan
	l.runMu.Unlock()

	go func() {
		for {
			select {
			case now := <-ticker.C:
				l.Step(now)
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎞️ Frame loop started at %d FPS", l.fps)
}

// Stop halts the background ticker. Pending callbacks are kept.
func (l *Loop) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if !l.running {
		return
	}
	l.running = false
	l.ticker.Stop()
	close(l.stopChan)
	log.Println("🛑 Frame loop stopped")
}
