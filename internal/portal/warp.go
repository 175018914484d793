package portal

import (
	"log"
	"math/rand"
	"time"

	"cogentcore.org/core/math32"

	"vibeverse/internal/eventlog"
	"vibeverse/internal/frame"
	"vibeverse/internal/scene"
	"vibeverse/internal/telemetry"
)

// WarpController flies the camera through the tunnel while warping.
//
// Each Start opens a new loop generation. A scheduled tick whose generation
// is no longer current returns without doing work or rescheduling, so a
// Stop followed by a Start before the stale tick fires never leaves two
// loops running.
type WarpController struct {
	cfg    *WarpConfig
	scene  *scene.Node
	camera *scene.Node
	sched  frame.Scheduler
	rng    *rand.Rand
	clock  func() time.Time
	events eventlog.Sink

	visual     *WarpVisual
	warping    bool
	speed      float32
	generation uint64
}

// NewWarpController returns an idle controller. A nil cfg disables it.
func NewWarpController(cfg *WarpConfig, sc, camera *scene.Node, sched frame.Scheduler, rng *rand.Rand, clock func() time.Time, events eventlog.Sink) *WarpController {
	if clock == nil {
		clock = time.Now
	}
	return &WarpController{
		cfg:    cfg,
		scene:  sc,
		camera: camera,
		sched:  sched,
		rng:    rng,
		clock:  clock,
		events: events,
	}
}

// Enabled reports whether Start does anything.
func (w *WarpController) Enabled() bool { return w.cfg != nil }

// Warping reports whether the tunnel is currently playing.
func (w *WarpController) Warping() bool { return w.warping }

// Speed is the accumulated camera speed in units per tick.
func (w *WarpController) Speed() float32 { return w.speed }

// Visual returns the tunnel, or nil before the first Start.
func (w *WarpController) Visual() *WarpVisual { return w.visual }

// Start shows the tunnel and begins the fly-through. It is a no-op when
// disabled or already warping.
func (w *WarpController) Start() {
	if w.cfg == nil || w.warping {
		return
	}
	w.warping = true
	w.speed = 0

	if w.visual == nil {
		w.visual = BuildWarpVisual(*w.cfg, w.rng, w.clock())
		w.scene.Add(w.visual.Node)
	}
	w.visual.Node.Visible = true
	w.visual.Node.Material.Opacity = 1

	w.generation++
	gen := w.generation
	w.sched.RequestFrame(func(now time.Time) { w.tick(gen, now) })

	log.Printf("🌀 Warp started (%d lines)", w.cfg.LineCount)
	telemetry.SetWarpActive(true)
	if w.events != nil {
		w.events.EmitSimple(eventlog.EventTypeWarpStart, "warp", eventlog.WarpPayload{CameraSpeed: w.cfg.CameraSpeed})
	}
}

// Stop hides the tunnel and resets the camera speed. The visual is kept
// for the next Start.
func (w *WarpController) Stop() {
	was := w.warping
	w.warping = false
	w.speed = 0
	if w.visual != nil {
		w.visual.Node.Visible = false
	}
	if !was {
		return
	}
	log.Printf("🌀 Warp stopped")
	telemetry.SetWarpActive(false)
	if w.events != nil {
		w.events.EmitSimple(eventlog.EventTypeWarpStop, "warp", eventlog.WarpPayload{})
	}
}

func (w *WarpController) tick(gen uint64, now time.Time) {
	if !w.warping || gen != w.generation {
		return
	}
	w.Advance(now)
	w.sched.RequestFrame(func(now time.Time) { w.tick(gen, now) })
}

// Advance runs one animation step of the warp at time now and returns the
// number of lines recycled. It does nothing unless warping.
func (w *WarpController) Advance(now time.Time) int {
	if !w.warping || w.visual == nil {
		return 0
	}
	cfg := w.cfg

	forward := w.camera.Forward()
	w.speed = math32.Min(w.speed+cfg.CameraAcceleration, cfg.CameraSpeed)
	w.camera.Pose.Pos = w.camera.Pose.Pos.Add(forward.MulScalar(w.speed))

	node := w.visual.Node
	node.Pose.Pos = w.camera.Pose.Pos
	node.Pose.Quat = w.camera.Pose.Quat

	elapsed := float32(now.Sub(w.visual.StartTime).Seconds())
	g := node.Geometry
	resets := 0
	for i := 0; i < cfg.LineCount; i++ {
		osc := (math32.Sin(elapsed*cfg.OscillationSpeed+w.visual.Offsets[i]) + 1) * 0.5
		v := w.visual.Velocities[i].Z * (cfg.MinSpeedFactor + osc*(1-cfg.MinSpeedFactor))

		base := i * cfg.PointsPerLine
		overflow := false
		for j := 0; j < cfg.PointsPerLine; j++ {
			z := g.Positions[(base+j)*3+2] + v
			g.Positions[(base+j)*3+2] = z
			if z > cfg.ResetDistance {
				overflow = true
			}
		}
		if overflow {
			for j := 0; j < cfg.PointsPerLine; j++ {
				g.SetPosition(base+j, cfg.linePoint(i, j, -cfg.ResetOffset))
			}
			resets++
		}
	}
	g.Touch()
	telemetry.RecordWarpTick(resets)
	return resets
}
