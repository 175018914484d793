// Package eventlog records portal runtime events as newline-delimited JSON.
//
// Emission never blocks the frame loop: events go into a bounded ring
// buffer and a background writer flushes them in batches.
package eventlog

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	BufferSize           = 1024
	MaxEventsPerSec      = 1000
	MaxEventsPerSource   = 60 // a lingering player re-enters a portal every frame
	BatchFlushSize       = 64
	BatchFlushInterval   = 100 * time.Millisecond
	SourceLimiterCleanup = 5 * time.Minute
)

// Sink is implemented by anything that accepts events.
type Sink interface {
	EmitSimple(eventType EventType, source string, payload any) bool
}

// Log provides bounded, rate-limited event logging with backpressure.
type Log struct {
	mu        sync.Mutex
	buffer    [BufferSize]Event
	writeHead uint64
	readHead  uint64

	globalLimiter  *rate.Limiter
	sourceLimiters sync.Map // map[string]*sourceLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

type sourceLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// New creates an idle log. Call Start to begin writing.
func New() *Log {
	return &Log{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens path for appending and launches the writer. An empty path
// keeps events in memory only.
func (el *Log) Start(path string) error {
	if el.running.Load() {
		return nil
	}

	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Stop flushes pending events and closes the file.
func (el *Log) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit appends an event. It returns false when the log is stopped or the
// event was rate limited.
func (el *Log) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}
	if event.Source != "" && !el.sourceLimiter(event.Source).Allow() {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	el.writeHead++
	if el.writeHead-el.readHead > BufferSize {
		// overwrite the oldest entry
		el.readHead++
		el.droppedCount.Add(1)
	}
	event.Sequence = el.writeHead
	el.buffer[el.writeHead%BufferSize] = event
	el.mu.Unlock()

	el.totalCount.Add(1)
	return true
}

// EmitSimple builds and emits an event.
func (el *Log) EmitSimple(eventType EventType, source string, payload any) bool {
	return el.Emit(NewEvent(eventType, source, payload))
}

func (el *Log) sourceLimiter(source string) *rate.Limiter {
	if entry, ok := el.sourceLimiters.Load(source); ok {
		e := entry.(*sourceLimiterEntry)
		e.lastUsed = time.Now()
		return e.limiter
	}
	entry := &sourceLimiterEntry{
		limiter:  rate.NewLimiter(MaxEventsPerSource, MaxEventsPerSource),
		lastUsed: time.Now(),
	}
	actual, _ := el.sourceLimiters.LoadOrStore(source, entry)
	return actual.(*sourceLimiterEntry).limiter
}

func (el *Log) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *Log) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(SourceLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-SourceLimiterCleanup)
			el.sourceLimiters.Range(func(key, value any) bool {
				if value.(*sourceLimiterEntry).lastUsed.Before(cutoff) {
					el.sourceLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (el *Log) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		el.readHead++
		batch = append(batch, el.buffer[el.readHead%BufferSize])
	}
	return batch
}

func (el *Log) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.file.Write(append(data, '\n'))
	}
}

// Stats reports counters for the debug API.
func (el *Log) Stats() map[string]any {
	el.mu.Lock()
	pending := el.writeHead - el.readHead
	el.mu.Unlock()

	return map[string]any{
		"total":   el.totalCount.Load(),
		"dropped": el.droppedCount.Load(),
		"pending": pending,
		"running": el.running.Load(),
	}
}
