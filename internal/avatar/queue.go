// Package avatar swaps player rig models for 3D assets fetched by URL or
// vibatar username.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"vibeverse/internal/eventlog"
	"vibeverse/internal/scene"
	"vibeverse/internal/telemetry"
)

var (
	// ErrDomainNotAllowed is reported for asset URLs outside the allow-list.
	ErrDomainNotAllowed = errors.New("avatar: domain not allowed")
	// ErrEmptyAsset is reported when a loaded asset has no child node.
	ErrEmptyAsset = errors.New("avatar: asset has no model node")
)

const (
	DefaultMaxConcurrent = 5
	LoadWarnThreshold    = 5 * time.Second
)

// Config controls the queue. It is resolved once and never mutated.
type Config struct {
	UseBottomOrigin bool
	AllowedDomains  []string
	MaxConcurrent   int
}

// Options is the partial form of Config; nil fields take defaults.
type Options struct {
	UseBottomOrigin *bool    `toml:"use_bottom_origin"`
	AllowedDomains  []string `toml:"allowed_domains"`
	MaxConcurrent   *int     `toml:"max_concurrent"`
}

// DefaultConfig returns the built-in queue configuration.
func DefaultConfig() Config {
	return Config{
		UseBottomOrigin: false,
		AllowedDomains:  []string{VibatarHost},
		MaxConcurrent:   DefaultMaxConcurrent,
	}
}

// Resolve merges o over the defaults.
func (o *Options) Resolve() Config {
	cfg := DefaultConfig()
	if o == nil {
		return cfg
	}
	if o.UseBottomOrigin != nil {
		cfg.UseBottomOrigin = *o.UseBottomOrigin
	}
	if len(o.AllowedDomains) > 0 {
		cfg.AllowedDomains = append([]string(nil), o.AllowedDomains...)
	}
	if o.MaxConcurrent != nil && *o.MaxConcurrent > 0 {
		cfg.MaxConcurrent = *o.MaxConcurrent
	}
	return cfg
}

// Loader fetches and parses a 3D asset, returning its root node.
type Loader interface {
	Load(ctx context.Context, url string) (*scene.Node, error)
}

// Poster hands work back to the frame loop. The frame.Loop implements it.
type Poster interface {
	Post(fn func())
}

// Change describes a completed avatar swap.
type Change struct {
	Rig    *scene.Node
	Avatar *scene.Node
	URL    string
	Local  bool
}

// QueueDeps wires the queue to its collaborators.
type QueueDeps struct {
	Loader Loader
	Poster Poster        // nil applies results on the loading goroutine
	Local  *scene.Node   // the session's own player rig
	Notify func(Change)  // called in the frame context after a swap
	Events eventlog.Sink // optional
}

// Queue admits avatar loads in arrival order with bounded parallelism.
type Queue struct {
	cfg  Config
	deps QueueDeps
	ctx  context.Context

	mu        sync.Mutex
	pending   []*task
	inFlight  int
	completed uint64
	failed    uint64
	rejected  uint64
}

type task struct {
	rig        *scene.Node
	url        string
	done       chan error
	enqueuedAt time.Time
}

// QueueStats is a point-in-time view of the queue.
type QueueStats struct {
	Pending   int    `json:"pending"`
	InFlight  int    `json:"inFlight"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
	Limit     int    `json:"limit"`
}

// NewQueue creates a queue. Loads inherit ctx.
func NewQueue(ctx context.Context, cfg Config, deps QueueDeps) *Queue {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Queue{cfg: cfg, deps: deps, ctx: ctx}
}

// Config returns the resolved configuration.
func (q *Queue) Config() Config {
	return q.cfg
}

// Enqueue schedules a swap of rig's model for src, a URL or a vibatar
// username. The returned channel yields exactly one value once the task has
// finished: nil on success, otherwise the reason it was skipped. Rejections
// are reported immediately and never occupy a slot.
func (q *Queue) Enqueue(rig *scene.Node, src string) <-chan error {
	done := make(chan error, 1)
	url := ResolveSource(src)

	if !IsAllowedDomain(url, q.cfg.AllowedDomains) {
		log.Printf("⚠️ Avatar rejected: host %q is not in allowed domains %v", hostOf(url), q.cfg.AllowedDomains)
		telemetry.RecordAvatarResult("rejected")
		q.emit(eventlog.EventTypeAvatarRejected, rig, url, ErrDomainNotAllowed)
		q.mu.Lock()
		q.rejected++
		q.mu.Unlock()
		done <- fmt.Errorf("%w: %s", ErrDomainNotAllowed, hostOf(url))
		close(done)
		return done
	}

	q.mu.Lock()
	q.pending = append(q.pending, &task{rig: rig, url: url, done: done, enqueuedAt: time.Now()})
	q.mu.Unlock()

	q.dispatch()
	return done
}

// dispatch admits pending tasks while slots are free.
func (q *Queue) dispatch() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.inFlight < q.cfg.MaxConcurrent && len(q.pending) > 0 {
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.inFlight++
		telemetry.SetAvatarInFlight(q.inFlight)
		go q.run(t)
	}
}

func (q *Queue) run(t *task) {
	start := time.Now()
	root, err := q.deps.Loader.Load(q.ctx, t.url)
	if d := time.Since(start); d > LoadWarnThreshold {
		log.Printf("⚠️ Avatar load of %s took %.1fs", hostOf(t.url), d.Seconds())
	}

	finish := func() {
		result := q.apply(t, root, err)

		q.mu.Lock()
		q.inFlight--
		if result == nil {
			q.completed++
		} else {
			q.failed++
		}
		telemetry.SetAvatarInFlight(q.inFlight)
		q.mu.Unlock()

		t.done <- result
		close(t.done)
		q.dispatch()
	}

	if q.deps.Poster != nil {
		q.deps.Poster.Post(finish)
		return
	}
	finish()
}

// apply runs in the frame context.
func (q *Queue) apply(t *task, root *scene.Node, loadErr error) error {
	if loadErr != nil {
		log.Printf("⚠️ Avatar load failed for %s: %v", t.url, loadErr)
		telemetry.RecordAvatarResult("failed")
		q.emit(eventlog.EventTypeAvatarFailed, t.rig, t.url, loadErr)
		return fmt.Errorf("avatar: load %s: %w", t.url, loadErr)
	}
	if root == nil || len(root.Children()) == 0 {
		log.Printf("⚠️ Avatar asset %s has no model node, keeping current avatar", t.url)
		telemetry.RecordAvatarResult("empty")
		q.emit(eventlog.EventTypeAvatarFailed, t.rig, t.url, ErrEmptyAsset)
		return ErrEmptyAsset
	}

	model := root.Children()[0]
	root.Remove(model)

	Fit(t.rig, model, q.cfg.UseBottomOrigin)
	Replace(t.rig, model)

	local := t.rig == q.deps.Local
	log.Printf("🧍 Avatar swapped on %q from %s (waited %s)", t.rig.Name, hostOf(t.url), time.Since(t.enqueuedAt).Round(time.Millisecond))
	telemetry.RecordAvatarResult("loaded")
	q.emit(eventlog.EventTypeAvatarLoaded, t.rig, t.url, nil)

	if q.deps.Notify != nil {
		q.deps.Notify(Change{Rig: t.rig, Avatar: model, URL: t.url, Local: local})
	}
	return nil
}

func (q *Queue) emit(typ eventlog.EventType, rig *scene.Node, url string, err error) {
	if q.deps.Events == nil {
		return
	}
	p := eventlog.AvatarPayload{URL: url}
	if rig != nil {
		p.Rig = rig.Name
		p.Local = rig == q.deps.Local
	}
	if err != nil {
		p.Error = err.Error()
	}
	q.deps.Events.EmitSimple(typ, p.Rig, p)
}

// Stats returns current queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Pending:   len(q.pending),
		InFlight:  q.inFlight,
		Completed: q.completed,
		Failed:    q.failed,
		Rejected:  q.rejected,
		Limit:     q.cfg.MaxConcurrent,
	}
}
